package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"parking-layout/internal/common/logging"
)

// hopHeaders are not copied from upstream responses.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
}

// ============================================================
// Proxy Handler
// ============================================================

type Proxy struct {
	client *http.Client
	prefix string
	log    *logrus.Entry
}

// New builds a proxy that strips prefix from incoming paths before
// forwarding them.
func New(client *http.Client, prefix string, log *logrus.Entry) *Proxy {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Proxy{client: client, prefix: strings.TrimRight(prefix, "/"), log: log}
}

// To forwards the request to the same path, minus the prefix, on baseURL.
// The query string is kept.
func (p *Proxy) To(baseURL string) fiber.Handler {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(c fiber.Ctx) error {
		target := baseURL + strings.TrimPrefix(c.Path(), p.prefix)
		if q := string(c.Request().URI().QueryString()); q != "" {
			target += "?" + q
		}
		return p.Forward(c, target)
	}
}

// Forward sends the request to targetURL as is, multipart bodies included.
func (p *Proxy) Forward(c fiber.Ctx, targetURL string) error {
	contentType := c.Get("Content-Type")
	p.log.WithFields(logrus.Fields{
		"method":         c.Method(),
		"path":           c.Path(),
		"content_type":   contentType,
		"content_length": len(c.Body()),
		"target":         targetURL,
	}).Debug("forwarding")

	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return p.sendRaw(c, targetURL, contentType)
	}
	return p.sendMultipart(c, targetURL)
}

func (p *Proxy) sendRaw(c fiber.Ctx, targetURL, contentType string) error {
	var body io.Reader
	if len(c.Body()) > 0 {
		body = bytes.NewReader(c.Body())
	}
	req, err := http.NewRequestWithContext(context.Background(), c.Method(), targetURL, body)
	if err != nil {
		p.log.WithError(err).Error("build request")
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed", "code": "proxy_failed"})
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p.copyRequestHeaders(c, req)
	return p.send(c, req)
}

func (p *Proxy) sendMultipart(c fiber.Ctx, targetURL string) error {
	form, err := c.MultipartForm()
	if err != nil {
		p.log.WithError(err).Warn("parse multipart")
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart data", "code": "invalid_multipart"})
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, files := range form.File {
		for _, fileHeader := range files {
			file, err := fileHeader.Open()
			if err != nil {
				p.log.WithError(err).WithField("file", fileHeader.Filename).Warn("open multipart file")
				continue
			}

			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, key, fileHeader.Filename))
			if ct := fileHeader.Header.Get("Content-Type"); ct != "" {
				h.Set("Content-Type", ct)
			}

			part, err := writer.CreatePart(h)
			if err == nil {
				_, err = io.Copy(part, file)
			}
			file.Close()
			if err != nil {
				p.log.WithError(err).WithField("file", fileHeader.Filename).Warn("copy multipart file")
			}
		}
	}

	for key, values := range form.Value {
		for _, value := range values {
			_ = writer.WriteField(key, value)
		}
	}
	writer.Close()

	req, err := http.NewRequestWithContext(context.Background(), c.Method(), targetURL, bytes.NewReader(body.Bytes()))
	if err != nil {
		p.log.WithError(err).Error("build multipart request")
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed", "code": "proxy_failed"})
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	p.copyRequestHeaders(c, req)
	return p.send(c, req)
}

func (p *Proxy) copyRequestHeaders(c fiber.Ctx, req *http.Request) {
	for _, name := range []string{"Authorization", "Accept"} {
		if v := c.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
}

func (p *Proxy) send(c fiber.Ctx, req *http.Request) error {
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.WithError(err).WithField("target", req.URL.String()).Warn("upstream unreachable")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service", "code": "bad_gateway"})
	}
	defer resp.Body.Close()

	return p.copyResponse(c, resp)
}

func (p *Proxy) copyResponse(c fiber.Ctx, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		p.log.WithError(err).Warn("read upstream response")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream response", "code": "bad_gateway"})
	}

	for key, values := range resp.Header {
		if len(values) > 0 && !hopHeaders[key] {
			c.Set(key, values[0])
		}
	}

	c.Status(resp.StatusCode)
	return c.Send(data)
}
