package proxy

import "github.com/gofiber/fiber/v3"

// Upstreams are the base URLs of the services behind the gateway.
type Upstreams struct {
	Store  string
	Editor string
}

// Register mounts the public API on router. Level reads and writes go to the
// store; the editor owns sessions and the per-level views it computes.
func (p *Proxy) Register(router fiber.Router, up Upstreams) {
	store := p.To(up.Store)
	editor := p.To(up.Editor)

	// Editor
	router.Post("/sessions", editor)
	router.Get("/sessions/:id", editor)
	router.Delete("/sessions/:id", editor)
	router.Post("/sessions/:id/events", editor)
	router.Get("/levels/:id/availability", editor)
	router.Get("/levels/:id/availability.svg", editor)
	router.Post("/levels/:id/pick", editor)
	router.Post("/levels/:id/import", editor)
	router.Get("/levels/:id/plan.svg", editor)

	// Store
	router.Get("/levels", store)
	router.Post("/levels", store)
	router.Get("/levels/:id", store)
	router.Get("/levels/:id/zones", store)
	router.Post("/zones", store)
	router.Patch("/zones/:id", store)
	router.Delete("/zones/:id", store)
	router.Get("/vehicle-types", store)
}
