package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"parking-layout/internal/plaza/geometry"
)

// ============================================================
// Path Parser
// ============================================================

var pathCommand = regexp.MustCompile(`([MmLlHhVvZz])([^MmLlHhVvZz]*)`)

// ParsePath reads the straight-line subset of SVG path data (M, L, H, V, Z in
// absolute and relative form) and returns the visited points. Repeated
// coordinate pairs after a command are treated as implicit line-tos.
func ParsePath(d string) ([]geometry.Point, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, fmt.Errorf("empty path")
	}

	var (
		points []geometry.Point
		cur    geometry.Point
		start  geometry.Point
	)

	matches := pathCommand.FindAllStringSubmatch(d, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no path commands in %q", d)
	}

	for _, match := range matches {
		cmd := match[1]
		coords := parseCoords(match[2])

		switch cmd {
		case "M", "m", "L", "l":
			relative := cmd == "m" || cmd == "l"
			for i := 0; i+1 < len(coords); i += 2 {
				next := geometry.Point{X: coords[i], Y: coords[i+1]}
				if relative {
					next = cur.Add(next)
				}
				cur = next
				if i == 0 && (cmd == "M" || cmd == "m") {
					start = cur
				}
				points = append(points, cur)
			}

		case "H", "h":
			for _, v := range coords {
				if cmd == "h" {
					cur.X += v
				} else {
					cur.X = v
				}
				points = append(points, cur)
			}

		case "V", "v":
			for _, v := range coords {
				if cmd == "v" {
					cur.Y += v
				} else {
					cur.Y = v
				}
				points = append(points, cur)
			}

		case "Z", "z":
			cur = start
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("path %q has no coordinates", d)
	}
	return points, nil
}

func parseCoords(s string) []float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// Separators are commas or whitespace.
	s = strings.ReplaceAll(s, ",", " ")
	parts := strings.Fields(s)

	coords := make([]float64, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(part, 64)
		if err == nil {
			coords = append(coords, val)
		}
	}
	return coords
}
