// Package imageload fetches a level's background plan and reads its
// dimensions. Pixel data is never decoded; the browser draws the image itself.
package imageload

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrEmptyURL = errors.New("plan image url is empty")

// Image describes a background plan. Width and Height are in plan-local
// units, one unit per image pixel.
type Image struct {
	URL    string `json:"url"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// maxHeaderBytes bounds how much of the image is read to find its size.
const maxHeaderBytes = 1 << 20

type HTTPLoader struct {
	client *http.Client
}

func NewHTTPLoader(client *http.Client) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoader{client: client}
}

// Load downloads the start of the image at url and decodes its header.
func (l *HTTPLoader) Load(ctx context.Context, url string) (Image, error) {
	if url == "" {
		return Image{}, ErrEmptyURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Image{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetch plan image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("fetch plan image: status %d", resp.StatusCode)
	}

	img, err := Decode(io.LimitReader(resp.Body, maxHeaderBytes))
	if err != nil {
		return Image{}, err
	}
	img.URL = url
	return img, nil
}

// Decode reads the image header from r.
func Decode(r io.Reader) (Image, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return Image{}, fmt.Errorf("decode plan image: %w", err)
	}
	return Image{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
