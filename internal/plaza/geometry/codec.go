package geometry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ============================================================
// Polygon text codec
// ============================================================

const polygonKeyword = "POLYGON"

// maxCoordinate bounds every decoded value so the integer rectangle cannot
// overflow.
const maxCoordinate = math.MaxInt32

// Encode writes the rectangle as a closed five point polygon literal,
// starting and ending at the minimum corner.
func Encode(r Rect) string {
	x2, y2 := r.Max()
	return fmt.Sprintf("POLYGON((%d %d, %d %d, %d %d, %d %d, %d %d))",
		r.X, r.Y, x2, r.Y, x2, y2, r.X, y2, r.X, r.Y)
}

// Decode parses a polygon literal or a bare list of coordinate pairs and
// returns its bounding box. The boolean is false for anything it cannot read;
// Decode never fails loudly so callers can filter bad rows.
func Decode(text string) (Rect, bool) {
	body, ok := stripPolygon(text)
	if !ok {
		return Rect{}, false
	}
	points, ok := parsePoints(body)
	if !ok || len(points) < 2 {
		return Rect{}, false
	}
	return BoundingBox(points), true
}

// DecodeJSON accepts the geometry column as it arrives over the wire: a JSON
// string holding polygon text, a {x,y,width,height} object, a GeoJSON-like
// polygon object, or a bare array of [x,y] pairs.
func DecodeJSON(raw json.RawMessage) (Rect, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Rect{}, false
	}

	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Rect{}, false
		}
		return Decode(text)
	case '{':
		return decodeObject(raw)
	case '[':
		points, ok := decodeCoordinates(raw)
		if !ok {
			return Rect{}, false
		}
		return BoundingBox(points), true
	}
	return Rect{}, false
}

// stripPolygon removes an optional SRID prefix and the POLYGON((...)) wrapper.
func stripPolygon(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}

	if strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		i := strings.Index(s, ";")
		if i < 0 {
			return "", false
		}
		s = strings.TrimSpace(s[i+1:])
	}

	if !strings.HasPrefix(strings.ToUpper(s), polygonKeyword) {
		// Bare coordinate list.
		if strings.ContainsAny(s, "()") {
			return "", false
		}
		return s, true
	}

	s = strings.TrimSpace(s[len(polygonKeyword):])
	// Dimension markers are tolerated; only x and y are read.
	for _, marker := range []string{"ZM", "Z", "M"} {
		if strings.HasPrefix(strings.ToUpper(s), marker) {
			s = strings.TrimSpace(s[len(marker):])
			break
		}
	}

	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	if strings.Count(s, "(") != strings.Count(s, ")") {
		return "", false
	}

	// Interior rings fall inside the outer ring, so flattening every ring
	// leaves the bounding box unchanged.
	s = strings.NewReplacer("(", " ", ")", " ").Replace(s)
	return strings.TrimSpace(s), true
}

func parsePoints(body string) ([]Point, bool) {
	if strings.TrimSpace(body) == "" {
		return nil, false
	}
	parts := strings.Split(body, ",")

	flat := true
	for _, part := range parts {
		if len(strings.Fields(part)) != 1 {
			flat = false
			break
		}
	}
	if flat {
		return parseFlat(parts)
	}

	points := make([]Point, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) < 2 || len(fields) > 4 {
			return nil, false
		}
		x, ok := parseNumber(fields[0])
		if !ok {
			return nil, false
		}
		y, ok := parseNumber(fields[1])
		if !ok {
			return nil, false
		}
		points = append(points, Point{X: x, Y: y})
	}
	return points, true
}

// parseFlat reads "x,y,x,y" where every value is its own comma field.
func parseFlat(parts []string) ([]Point, bool) {
	if len(parts)%2 != 0 {
		return nil, false
	}
	points := make([]Point, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		x, ok := parseNumber(strings.TrimSpace(parts[i]))
		if !ok {
			return nil, false
		}
		y, ok := parseNumber(strings.TrimSpace(parts[i+1]))
		if !ok {
			return nil, false
		}
		points = append(points, Point{X: x, Y: y})
	}
	return points, true
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !inRange(v) {
		return 0, false
	}
	return v, true
}

func inRange(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= maxCoordinate
}

// ============================================================
// Structured geometry
// ============================================================

type structuredGeometry struct {
	X           *float64        `json:"x"`
	Y           *float64        `json:"y"`
	Width       *float64        `json:"width"`
	Height      *float64        `json:"height"`
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	Points      []Point         `json:"points"`
}

func decodeObject(raw json.RawMessage) (Rect, bool) {
	var g structuredGeometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return Rect{}, false
	}

	if g.X != nil && g.Y != nil && g.Width != nil && g.Height != nil {
		values := []float64{*g.X, *g.Y, *g.Width, *g.Height}
		for _, v := range values {
			if !inRange(v) {
				return Rect{}, false
			}
		}
		if *g.Width < 0 || *g.Height < 0 {
			return Rect{}, false
		}
		return RectFromPoints(
			Point{X: *g.X, Y: *g.Y},
			Point{X: *g.X + *g.Width, Y: *g.Y + *g.Height},
		), true
	}

	if len(g.Coordinates) > 0 {
		if g.Type != "" && !strings.EqualFold(g.Type, polygonKeyword) {
			return Rect{}, false
		}
		points, ok := decodeCoordinates(g.Coordinates)
		if !ok {
			return Rect{}, false
		}
		return BoundingBox(points), true
	}

	if len(g.Points) >= 2 {
		for _, p := range g.Points {
			if !inRange(p.X) || !inRange(p.Y) {
				return Rect{}, false
			}
		}
		return BoundingBox(g.Points), true
	}
	return Rect{}, false
}

// decodeCoordinates reads either a ring ([[x,y],...]) or a list of rings.
func decodeCoordinates(raw json.RawMessage) ([]Point, bool) {
	var rings [][][]float64
	if err := json.Unmarshal(raw, &rings); err == nil && len(rings) > 0 {
		var points []Point
		for _, ring := range rings {
			ringPoints, ok := pairsToPoints(ring)
			if !ok {
				return nil, false
			}
			points = append(points, ringPoints...)
		}
		return points, len(points) >= 2
	}

	var ring [][]float64
	if err := json.Unmarshal(raw, &ring); err != nil {
		return nil, false
	}
	points, ok := pairsToPoints(ring)
	return points, ok && len(points) >= 2
}

func pairsToPoints(pairs [][]float64) ([]Point, bool) {
	points := make([]Point, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 || !inRange(pair[0]) || !inRange(pair[1]) {
			return nil, false
		}
		points = append(points, Point{X: pair[0], Y: pair[1]})
	}
	return points, true
}
