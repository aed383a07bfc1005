package plan

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"parking-layout/internal/common/logging"
	"parking-layout/internal/editor/gateway"
	"parking-layout/internal/plaza/models"
)

// Creator is the part of the gateway the importer needs.
type Creator interface {
	Create(ctx context.Context, z gateway.NewZone) (models.Zone, error)
}

// ============================================================
// Importer
// ============================================================

// ImportResult lists what an import did. Failed maps element ids to the
// store error.
type ImportResult struct {
	Created []models.Zone     `json:"created"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed"`
}

type Importer struct {
	store          Creator
	vehicleType    string
	maxConcurrency int
	log            *logrus.Entry
}

func NewImporter(store Creator, defaultVehicleType string, log *logrus.Entry) *Importer {
	if defaultVehicleType == "" {
		defaultVehicleType = "car"
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Importer{store: store, vehicleType: defaultVehicleType, maxConcurrency: 4, log: log}
}

// Import creates one free zone per parking space in the document. Each space
// is created independently; a failed create does not stop the others.
func (im *Importer) Import(ctx context.Context, levelID string, r io.Reader) (*ImportResult, error) {
	p, err := ParseSVG(r)
	if err != nil {
		return nil, err
	}

	created := make([]*models.Zone, len(p.Spaces))
	res := &ImportResult{Skipped: p.Skipped, Failed: map[string]string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.maxConcurrency)
	for i, sp := range p.Spaces {
		g.Go(func() error {
			z, err := im.store.Create(gctx, gateway.NewZone{
				LevelID:       levelID,
				Geometry:      sp.Bounds,
				VehicleTypeID: im.vehicleType,
				Code:          sp.ID,
				State:         models.StateFree,
			})
			if err != nil {
				im.log.WithError(err).WithField("element_id", sp.ID).Warn("import: create failed")
				mu.Lock()
				res.Failed[sp.ID] = err.Error()
				mu.Unlock()
				return nil
			}
			created[i] = &z
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	for _, z := range created {
		if z != nil {
			res.Created = append(res.Created, *z)
		}
	}
	im.log.WithField("level_id", levelID).Infof("import: %d created, %d skipped, %d failed",
		len(res.Created), len(res.Skipped), len(res.Failed))
	return res, nil
}
