package plan

import (
	"html"
	"io"

	svg "github.com/ajstarks/svgo"

	"parking-layout/internal/plaza/models"
)

// ============================================================
// Renderer
// ============================================================

var stateFill = map[models.State]string{
	models.StateFree:         "#2ca02c",
	models.StateOccupied:     "#d62728",
	models.StateReserved:     "#ff7f0e",
	models.StateOutOfService: "#7f7f7f",
}

// Background is the plan image drawn under the zones.
type Background struct {
	URL    string
	Width  int
	Height int
}

type RenderOptions struct {
	Background *Background
	// Clickable limits which zones carry a data-zone-id attribute. Nil makes
	// every zone clickable.
	Clickable func(models.Zone) bool
	// Labels draws the zone code at the centre of each zone.
	Labels bool
}

const margin = 20

// Render writes an SVG document with the background and one rectangle per
// zone, coloured by state.
func Render(w io.Writer, level models.Level, zones []models.Zone, opts RenderOptions) {
	width, height := canvasSize(zones, opts.Background)

	canvas := svg.New(w)
	canvas.Start(width, height, `data-level-id="`+html.EscapeString(level.ID)+`"`)
	if level.Name != "" {
		canvas.Title(level.Name)
	}

	if bg := opts.Background; bg != nil && bg.URL != "" {
		canvas.Image(0, 0, bg.Width, bg.Height, html.EscapeString(bg.URL))
	}

	canvas.Gid("zones")
	for _, z := range zones {
		r := z.Geometry
		fill, ok := stateFill[z.State]
		if !ok {
			fill = "#1f77b4"
		}

		attrs := []string{
			"fill:" + fill + ";fill-opacity:0.35;stroke:" + fill + ";stroke-width:1",
			`class="zone zone-` + html.EscapeString(string(z.State)) + `"`,
		}
		if opts.Clickable == nil || opts.Clickable(z) {
			attrs = append(attrs, `data-zone-id="`+html.EscapeString(z.ID)+`"`)
		}
		canvas.Rect(r.X, r.Y, r.Width, r.Height, attrs...)

		if opts.Labels && z.Code != "" {
			canvas.Text(r.X+r.Width/2, r.Y+r.Height/2, z.Code,
				"text-anchor:middle;dominant-baseline:middle;font-size:10px;fill:#222;pointer-events:none")
		}
	}
	canvas.Gend()
	canvas.End()
}

func canvasSize(zones []models.Zone, bg *Background) (int, int) {
	width, height := 0, 0
	if bg != nil {
		width, height = bg.Width, bg.Height
	}
	for _, z := range zones {
		x2, y2 := z.Geometry.Max()
		width = max(width, x2+margin)
		height = max(height, y2+margin)
	}
	if width == 0 || height == 0 {
		return 1000, 1000
	}
	return width, height
}
