// Package reservation is the read-only consumer of the zone layout. It shows
// free zones as selectable targets; booking itself happens elsewhere.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"parking-layout/internal/common/logging"
	"parking-layout/internal/editor/imageload"
	"parking-layout/internal/plan"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

var ErrNoTarget = errors.New("no free parking space at that point")

// Source is the read side of the gateway.
type Source interface {
	Level(ctx context.Context, levelID string) (models.Level, error)
	Zones(ctx context.Context, levelID string) ([]models.Zone, error)
}

// ImageLoader reads the dimensions of a plan image.
type ImageLoader interface {
	Load(ctx context.Context, url string) (imageload.Image, error)
}

// Target is a zone that can be picked for a booking.
type Target struct {
	ZoneID        string        `json:"zone_id"`
	Code          string        `json:"code"`
	VehicleTypeID string        `json:"vehicle_type_id"`
	Geometry      geometry.Rect `json:"geometry"`
}

// Availability is the picture of a level as the booking flow sees it.
type Availability struct {
	Level   models.Level `json:"level"`
	Total   int          `json:"total"`
	Targets []Target     `json:"targets"`
}

// ============================================================
// Service
// ============================================================

type Service struct {
	src    Source
	images ImageLoader
	log    *logrus.Entry
}

// NewService builds the read path. images may be nil, in which case rendered
// plans have no background.
func NewService(src Source, images ImageLoader, log *logrus.Entry) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{src: src, images: images, log: log}
}

// Availability loads the level and keeps only free zones as targets. Zones
// with unreadable geometry never reach this point.
func (s *Service) Availability(ctx context.Context, levelID string) (*Availability, []models.Zone, error) {
	var (
		level models.Level
		zones []models.Zone
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		level, err = s.src.Level(gctx, levelID)
		return err
	})
	g.Go(func() error {
		var err error
		zones, err = s.src.Zones(gctx, levelID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("availability of %s: %w", levelID, err)
	}

	a := &Availability{Level: level, Total: len(zones), Targets: []Target{}}
	for _, z := range zones {
		if z.State != models.StateFree {
			continue
		}
		a.Targets = append(a.Targets, Target{
			ZoneID:        z.ID,
			Code:          z.Code,
			VehicleTypeID: z.VehicleTypeID,
			Geometry:      z.Geometry,
		})
	}
	s.log.WithField("level_id", levelID).Debugf("%d of %d zones free", len(a.Targets), a.Total)
	return a, zones, nil
}

// Pick returns the free target under a plan-local point. When targets
// overlap the last one wins, matching paint order.
func (s *Service) Pick(ctx context.Context, levelID string, p geometry.Point) (Target, error) {
	a, _, err := s.Availability(ctx, levelID)
	if err != nil {
		return Target{}, err
	}
	for i := len(a.Targets) - 1; i >= 0; i-- {
		if a.Targets[i].Geometry.Contains(p) {
			return a.Targets[i], nil
		}
	}
	return Target{}, ErrNoTarget
}

// RenderSVG draws every zone of the level over its plan image, with only free
// zones clickable. An unavailable image is logged and left out.
func (s *Service) RenderSVG(ctx context.Context, levelID string, w io.Writer) error {
	a, zones, err := s.Availability(ctx, levelID)
	if err != nil {
		return err
	}
	plan.Render(w, a.Level, zones, plan.RenderOptions{
		Background: s.background(ctx, a.Level),
		Clickable:  func(z models.Zone) bool { return z.State == models.StateFree },
		Labels:     true,
	})
	return nil
}

// RenderPlan draws every zone of the level, all of them clickable, the way the
// editor shows the layout.
func (s *Service) RenderPlan(ctx context.Context, levelID string, w io.Writer) error {
	a, zones, err := s.Availability(ctx, levelID)
	if err != nil {
		return err
	}
	plan.Render(w, a.Level, zones, plan.RenderOptions{
		Background: s.background(ctx, a.Level),
		Labels:     true,
	})
	return nil
}

func (s *Service) background(ctx context.Context, level models.Level) *plan.Background {
	if s.images == nil || level.PlanImageURL == "" {
		return nil
	}
	img, err := s.images.Load(ctx, level.PlanImageURL)
	if err != nil {
		s.log.WithError(err).WithField("level_id", level.ID).Warn("plan image unavailable")
		return nil
	}
	return &plan.Background{URL: img.URL, Width: img.Width, Height: img.Height}
}
