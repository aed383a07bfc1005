package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Health Check Handlers
// ============================================================

// LivenessProbe reports that the process is serving.
func LivenessProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// StartupProbe reports that startup has finished.
func StartupProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "started",
	})
}

// Readiness checks that every upstream answers its liveness probe.
type Readiness struct {
	client    *http.Client
	upstreams map[string]string
}

// NewReadiness takes upstream names mapped to base URLs.
func NewReadiness(client *http.Client, upstreams map[string]string) *Readiness {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	return &Readiness{client: client, upstreams: upstreams}
}

// Probe answers 200 when all upstreams are live and 503 otherwise, listing
// each upstream's status.
func (r *Readiness) Probe(c fiber.Ctx) error {
	results := make(map[string]string, len(r.upstreams))
	type result struct{ name, status string }
	out := make(chan result, len(r.upstreams))

	var g errgroup.Group
	for name, base := range r.upstreams {
		g.Go(func() error {
			out <- result{name, r.check(base)}
			return nil
		})
	}
	_ = g.Wait()
	close(out)

	ready := true
	for res := range out {
		results[res.name] = res.status
		if res.status != "up" {
			ready = false
		}
	}

	if !ready {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "upstreams": results})
	}
	return c.JSON(fiber.Map{"status": "ready", "upstreams": results})
}

func (r *Readiness) check(base string) string {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, strings.TrimRight(base, "/")+"/health/live", nil)
	if err != nil {
		return "down"
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "down"
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "down"
	}
	return "up"
}
