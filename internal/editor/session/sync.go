package session

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"parking-layout/internal/plaza/models"
)

// ============================================================
// Scene synchronisation
// ============================================================

// Load fetches the level and its zones and replaces the scene. It blocks and
// must be called before Run; the background image follows asynchronously.
func (s *Session) Load(ctx context.Context) error {
	level, zones, err := s.fetch(ctx, s.levelID)
	if err != nil {
		return err
	}
	s.level = level
	s.applyZones(zones)
	s.loadBackground()
	return nil
}

// fetch reads the level and its zones in parallel.
func (s *Session) fetch(ctx context.Context, levelID string) (models.Level, []models.Zone, error) {
	var (
		level models.Level
		zones []models.Zone
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		level, err = s.gw.Level(gctx, levelID)
		if err != nil {
			return fmt.Errorf("load level %s: %w", levelID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		zones, err = s.gw.Zones(gctx, levelID)
		if err != nil {
			return fmt.Errorf("load zones of %s: %w", levelID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Level{}, nil, err
	}
	return level, zones, nil
}

// reload re-reads the store without blocking the session.
func (s *Session) reload() {
	seq := s.loadSeq
	levelID := s.levelID
	s.spawn(func(ctx context.Context) func() {
		level, zones, err := s.fetch(ctx, levelID)
		return func() {
			if seq != s.loadSeq {
				return
			}
			if err != nil {
				s.log.WithError(err).Warn("reload failed")
				s.notify(NoticeLoadFailed, SeverityError, "", "Could not load level %s", levelID)
				return
			}
			imageChanged := level.PlanImageURL != s.level.PlanImageURL || s.background == nil
			s.level = level
			s.applyZones(zones)
			if imageChanged {
				s.loadBackground()
			}
		}
	})
}

// applyZones reconciles the arena with store truth. The zone under an active
// gesture keeps its local state; selection and pending delete are dropped for
// zones the store no longer has.
func (s *Session) applyZones(zones []models.Zone) {
	skip := ""
	if s.gesture != nil {
		skip = s.gesture.zoneID
	}

	diff := s.scene.Reconcile(zones, skip)
	for _, id := range diff.Removed {
		if s.gesture != nil && s.gesture.zoneID == id {
			s.gesture = nil
		}
		if s.selected == id {
			s.selected = ""
		}
		if s.pendingDelete == id {
			s.pendingDelete = ""
		}
	}

	if !diff.Empty() {
		s.log.WithField("level_id", s.levelID).Debugf("reconciled zones: %d added, %d removed, %d updated",
			len(diff.Added), len(diff.Removed), len(diff.Updated))
	}
}

// loadBackground fetches the plan image independently of the zones. A
// failure leaves the scene without a background.
func (s *Session) loadBackground() {
	url := s.level.PlanImageURL
	if url == "" || s.images == nil {
		s.background = nil
		return
	}

	seq := s.loadSeq
	s.spawn(func(ctx context.Context) func() {
		img, err := s.images.Load(ctx, url)
		return func() {
			if seq != s.loadSeq || url != s.level.PlanImageURL {
				return
			}
			if err != nil {
				s.log.WithError(err).WithField("url", url).Warn("plan image unavailable")
				s.background = nil
				return
			}
			s.background = &img
		}
	})
}

// switchLevel discards everything scoped to the current level and loads the
// new one.
func (s *Session) switchLevel(levelID string) error {
	if levelID == "" {
		return fmt.Errorf("%w: switch_level needs a level_id", ErrInvalidEvent)
	}
	s.deselect()
	s.clearAuthoring()
	s.pendingDelete = ""
	s.vp.Reset()
	s.scene.Clear()
	s.background = nil
	s.level = models.Level{ID: levelID}
	s.levelID = levelID
	s.loadSeq++
	s.reload()
	return nil
}
