package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"parking-layout/internal/common/clock"
	"parking-layout/internal/common/logging"
	"parking-layout/internal/editor/gateway"
)

var ErrSessionNotFound = errors.New("session not found")

// ManagerConfig configures session ownership and eviction.
type ManagerConfig struct {
	IdleTimeout        time.Duration
	DefaultVehicleType string
	Clock              clock.Clock
	Log                *logrus.Entry
}

// ============================================================
// Manager
// ============================================================

// Manager keeps the open sessions of an editor process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*running

	gw     gateway.Gateway
	images ImageLoader
	cfg    ManagerConfig
	log    *logrus.Entry
	cron   *cron.Cron
}

type running struct {
	session *Session
	stop    context.CancelFunc
}

func NewManager(gw gateway.Gateway, images ImageLoader, cfg ManagerConfig) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}
	return &Manager{
		sessions: make(map[string]*running),
		gw:       gw,
		images:   images,
		cfg:      cfg,
		log:      cfg.Log,
	}
}

// Open creates a session for a level, loads its scene and starts its loop.
func (m *Manager) Open(ctx context.Context, levelID string) (*Session, error) {
	if levelID == "" {
		return nil, fmt.Errorf("open session: level_id is required")
	}

	id := uuid.NewString()
	s := New(id, levelID, m.gw, m.images, Options{
		DefaultVehicleType: m.cfg.DefaultVehicleType,
		Clock:              m.cfg.Clock,
		Log:                m.log,
	})
	if err := s.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}

	runCtx, stop := context.WithCancel(context.Background())
	go func() {
		if err := s.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.WithError(err).WithField("session_id", id).Warn("session loop ended")
		}
	}()

	m.mu.Lock()
	m.sessions[id] = &running{session: s, stop: stop}
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"session_id": id, "level_id": levelID}).Info("session opened")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return r.session, nil
}

// Close ends a session. State that was not persisted is discarded.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	r, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	r.session.Close()
	r.stop()
	m.log.WithField("session_id", id).Info("session closed")
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the configured timeout and
// returns how many it closed.
func (m *Manager) Sweep() int {
	cutoff := m.cfg.Clock.Now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var idle []string
	for id, r := range m.sessions {
		if r.session.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	closed := 0
	for _, id := range idle {
		if err := m.Close(id); err == nil {
			closed++
		}
	}
	if closed > 0 {
		m.log.Infof("evicted %d idle sessions", closed)
	}
	return closed
}

// ============================================================
// Scheduling
// ============================================================

// StartSweeper runs Sweep on a cron schedule such as "@every 1m".
func (m *Manager) StartSweeper(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("schedule session sweep %q: %w", spec, err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	return nil
}

// Shutdown stops the sweeper and closes every session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	for _, id := range ids {
		_ = m.Close(id)
	}
}
