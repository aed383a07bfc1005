// Package plan reads parking spaces out of SVG floor plans and renders zones
// back to SVG.
package plan

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"parking-layout/internal/plaza/geometry"
)

var ErrNotSVG = errors.New("document is not an svg")

// ============================================================
// Parsed plan
// ============================================================

// Space is a parking space found in a plan. Bounds are in plan units.
type Space struct {
	ID     string        `json:"id"`
	Bounds geometry.Rect `json:"bounds"`
}

type Plan struct {
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Spaces  []Space  `json:"spaces"`
	Skipped []string `json:"skipped"`
}

// IsParkingSpace reports whether an element id marks a parking space.
func IsParkingSpace(id string) bool {
	switch {
	case strings.HasPrefix(id, "Plaza_"),
		strings.HasPrefix(id, "Spot_"),
		strings.HasPrefix(id, "Parking_"),
		strings.HasSuffix(strings.ToLower(id), "_plaza"):
		return true
	}
	return false
}

// ============================================================
// Parser
// ============================================================

// ParseSVG walks the whole document, nested groups included, and collects
// every marked <rect> and <path>. Elements whose bounds are below one unit are
// listed in Skipped.
func ParseSVG(r io.Reader) (*Plan, error) {
	dec := xml.NewDecoder(r)
	p := &Plan{}
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "svg":
			if !sawRoot {
				sawRoot = true
				p.Width, p.Height = rootSize(start)
			}
		case "rect":
			id := attr(start, "id")
			if !IsParkingSpace(id) {
				continue
			}
			x, y := attrFloat(start, "x"), attrFloat(start, "y")
			w, h := attrFloat(start, "width"), attrFloat(start, "height")
			p.add(id, geometry.RectFromPoints(
				geometry.Point{X: x, Y: y},
				geometry.Point{X: x + w, Y: y + h},
			))
		case "path":
			id := attr(start, "id")
			if !IsParkingSpace(id) {
				continue
			}
			points, err := ParsePath(attr(start, "d"))
			if err != nil {
				p.Skipped = append(p.Skipped, id)
				continue
			}
			p.add(id, geometry.BoundingBox(points))
		}
	}

	if !sawRoot {
		return nil, ErrNotSVG
	}
	return p, nil
}

func (p *Plan) add(id string, r geometry.Rect) {
	if !r.Valid() {
		p.Skipped = append(p.Skipped, id)
		return
	}
	p.Spaces = append(p.Spaces, Space{ID: id, Bounds: r})
}

// rootSize reads width/height from the root element, falling back to the
// viewBox.
func rootSize(el xml.StartElement) (float64, float64) {
	w, h := attrFloat(el, "width"), attrFloat(el, "height")
	if w > 0 && h > 0 {
		return w, h
	}
	fields := strings.Fields(strings.ReplaceAll(attr(el, "viewBox"), ",", " "))
	if len(fields) == 4 {
		vw, _ := strconv.ParseFloat(fields[2], 64)
		vh, _ := strconv.ParseFloat(fields[3], 64)
		return vw, vh
	}
	return 0, 0
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// attrFloat parses a numeric attribute; a trailing "px" unit is accepted.
func attrFloat(el xml.StartElement, name string) float64 {
	v := strings.TrimSuffix(strings.TrimSpace(attr(el, name)), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
