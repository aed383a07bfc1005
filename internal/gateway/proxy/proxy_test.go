package proxy

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
	types    []string
}

func (s *seen) last() (string, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return "", "", ""
	}
	n := len(s.requests) - 1
	return s.requests[n], s.bodies[n], s.types[n]
}

func upstream(t *testing.T, name string) (*httptest.Server, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
		s.bodies = append(s.bodies, string(body))
		s.types = append(s.types, r.Header.Get("Content-Type"))
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", name)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"from":"` + name + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

func newGateway(t *testing.T) (*fiber.App, *seen, *seen) {
	store, storeSeen := upstream(t, "store")
	editor, editorSeen := upstream(t, "editor")

	app := fiber.New()
	New(nil, "/api/v1", nil).Register(app.Group("/api/v1"), Upstreams{Store: store.URL, Editor: editor.URL})
	return app, storeSeen, editorSeen
}

func TestProxy_Routing(t *testing.T) {
	app, storeSeen, editorSeen := newGateway(t)

	cases := []struct {
		method, path, want string
		editor             bool
	}{
		{http.MethodGet, "/api/v1/levels", "GET /levels", false},
		{http.MethodGet, "/api/v1/levels/L1/zones", "GET /levels/L1/zones", false},
		{http.MethodPatch, "/api/v1/zones/z1", "PATCH /zones/z1", false},
		{http.MethodGet, "/api/v1/vehicle-types", "GET /vehicle-types", false},
		{http.MethodPost, "/api/v1/sessions", "POST /sessions", true},
		{http.MethodPost, "/api/v1/sessions/s1/events", "POST /sessions/s1/events", true},
		{http.MethodGet, "/api/v1/levels/L1/availability.svg", "GET /levels/L1/availability.svg", true},
		{http.MethodGet, "/api/v1/levels/L1/plan.svg?labels=1", "GET /levels/L1/plan.svg?labels=1", true},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{"a":1}`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusCreated, resp.StatusCode)
			target := storeSeen
			if tc.editor {
				target = editorSeen
			}
			got, body, ct := target.last()
			assert.Equal(t, tc.want, got)
			assert.Equal(t, `{"a":1}`, body)
			assert.Equal(t, "application/json", ct)
		})
	}
}

func TestProxy_CopiesResponse(t *testing.T) {
	app, _, _ := newGateway(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/levels/L1", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"from":"store"}`, string(data))
	assert.Equal(t, "store", resp.Header.Get("X-Upstream"))
}

func TestProxy_Multipart(t *testing.T) {
	app, _, editorSeen := newGateway(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "plan.svg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("<svg/>"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/levels/L1/import", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()

	got, fwd, ct := editorSeen.last()
	assert.Equal(t, "POST /levels/L1/import", got)
	assert.True(t, strings.HasPrefix(ct, "multipart/form-data"))
	assert.Contains(t, fwd, `filename="plan.svg"`)
	assert.Contains(t, fwd, "<svg/>")
}

func TestProxy_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	app := fiber.New()
	New(nil, "/api/v1", nil).Register(app.Group("/api/v1"), Upstreams{Store: url, Editor: url})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/levels", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
