package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"parking-layout/internal/common/logging"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

// ============================================================
// HTTP client for the store service
// ============================================================

type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

// NewClient builds a client for the store at baseURL. A nil httpClient means
// http.DefaultClient; calls carry no timeout of their own.
func NewClient(baseURL string, httpClient *http.Client, log *logrus.Entry) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

var _ Gateway = (*Client)(nil)

func (c *Client) Level(ctx context.Context, levelID string) (models.Level, error) {
	var level models.Level
	err := c.do(ctx, "level", http.MethodGet, "/levels/"+url.PathEscape(levelID), nil, &level)
	return level, err
}

func (c *Client) Zones(ctx context.Context, levelID string) ([]models.Zone, error) {
	var records []models.ZoneRecord
	path := "/levels/" + url.PathEscape(levelID) + "/zones"
	if err := c.do(ctx, "zones", http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}

	zones := make([]models.Zone, 0, len(records))
	for _, rec := range records {
		z, ok := rec.Decode()
		if !ok {
			c.log.WithField("zone_id", rec.ID).Debugf("dropping zone with unreadable geometry %s", string(rec.Geometry))
			continue
		}
		zones = append(zones, z)
	}
	return zones, nil
}

type createZoneRequest struct {
	LevelID       string       `json:"level_id"`
	Geometry      string       `json:"geometry"`
	VehicleTypeID string       `json:"vehicle_type_id"`
	Code          string       `json:"code"`
	State         models.State `json:"state"`
}

func (c *Client) Create(ctx context.Context, z NewZone) (models.Zone, error) {
	if !z.Geometry.Valid() {
		return models.Zone{}, fmt.Errorf("create: %w", ErrInvalidGeometry)
	}
	req := createZoneRequest{
		LevelID:       z.LevelID,
		Geometry:      geometry.Encode(z.Geometry),
		VehicleTypeID: z.VehicleTypeID,
		Code:          z.Code,
		State:         z.State,
	}

	var rec models.ZoneRecord
	if err := c.do(ctx, "create", http.MethodPost, "/zones", req, &rec); err != nil {
		return models.Zone{}, err
	}
	if rec.ID == "" {
		return models.Zone{}, &Error{Op: "create", Status: http.StatusOK, Message: "store returned no id"}
	}

	created := models.Zone{
		ID:            rec.ID,
		LevelID:       z.LevelID,
		Code:          z.Code,
		VehicleTypeID: z.VehicleTypeID,
		State:         z.State,
		Geometry:      z.Geometry,
	}
	if decoded, ok := rec.Decode(); ok {
		created = decoded
	}
	return created, nil
}

func (c *Client) UpdateGeometry(ctx context.Context, zoneID string, r geometry.Rect) error {
	if !r.Valid() {
		return fmt.Errorf("update geometry: %w", ErrInvalidGeometry)
	}
	body := map[string]string{"geometry": geometry.Encode(r)}
	return c.do(ctx, "update geometry", http.MethodPatch, "/zones/"+url.PathEscape(zoneID), body, nil)
}

func (c *Client) UpdateAttributes(ctx context.Context, zoneID string, f ZoneFields) error {
	if f.Empty() {
		return nil
	}
	return c.do(ctx, "update attributes", http.MethodPatch, "/zones/"+url.PathEscape(zoneID), f, nil)
}

func (c *Client) Remove(ctx context.Context, zoneID string) error {
	return c.do(ctx, "remove", http.MethodDelete, "/zones/"+url.PathEscape(zoneID), nil, nil)
}

// ============================================================
// Transport
// ============================================================

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return &Error{Op: op, Status: resp.StatusCode, Message: eb.Error}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
