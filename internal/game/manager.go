package game

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridvale/server/internal/config"
	"github.com/gridvale/server/internal/data"
	"github.com/gridvale/server/internal/oracle"
	"github.com/gridvale/server/internal/persist"
	"github.com/gridvale/server/internal/system"
	"github.com/gridvale/server/internal/world"
)

// ErrSessionNotFound is returned for operations on unknown session ids.
var ErrSessionNotFound = errors.New("game: session not found")

// Prompts is the scripting surface the manager needs: per-NPC personalities
// at generation time, prompt construction at run time.
type Prompts interface {
	system.PromptBuilder
	Personality(index int) string
}

// Manager owns every live session: creation, action routing, subscriber
// attach/detach, autosave, and reaping of inactive worlds.
type Manager struct {
	cfg     *config.Config
	log     *zap.Logger
	oracle  oracle.Client
	prompts Prompts
	store   persist.Store
	catalog *data.Catalog

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg *config.Config, client oracle.Client, prompts Prompts, store persist.Store, catalog *data.Catalog, log *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      log,
		oracle:   client,
		prompts:  prompts,
		store:    store,
		catalog:  catalog,
		sessions: make(map[string]*Session),
	}
}

// CreateSession generates a fresh world and starts its tick loop, returning
// the new session id.
func (m *Manager) CreateSession() (string, error) {
	id := uuid.NewString()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	w, err := world.Generate(world.GenConfig{
		Width:            m.cfg.World.Width,
		Height:           m.cfg.World.Height,
		NPCCount:         m.cfg.World.NPCCount,
		StructureDensity: m.cfg.World.StructureDensity,
		InteractRadius:   m.cfg.World.InteractRadius,
		PlayerMoveMs:     m.cfg.World.PlayerMoveMs,
		NPCMoveMs:        m.cfg.World.NPCMoveMs,
	}, m.catalog, m.prompts.Personality, rng)
	if err != nil {
		return "", err
	}

	s := NewSession(id, w, m.oracle, m.prompts, Params{
		TickInterval:    m.cfg.Session.TickRate,
		ActionQueueSize: m.cfg.Session.ActionQueueSize,
		InteractRadius:  m.cfg.World.InteractRadius,
		PlayerMoveMs:    m.cfg.World.PlayerMoveMs,
		OracleTimeout:   m.cfg.Oracle.Timeout,
	}, m.catalog, m.log)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	go s.Run()

	m.log.Info("session created", zap.String("session", id), zap.Int("entities", w.EntityCount()))
	return id, nil
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run drives autosave and inactive-session cleanup until the context ends,
// then stops every session after one final save.
func (m *Manager) Run(ctx context.Context) {
	autosave := time.NewTicker(m.cfg.Session.AutosaveEvery)
	defer autosave.Stop()
	cleanup := time.NewTicker(m.cfg.Session.CleanupEvery)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case <-autosave.C:
			m.autosaveAll()
		case <-cleanup.C:
			m.reapInactive(time.Now().UnixMilli())
		}
	}
}

func (m *Manager) autosaveAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.saveSession(s)
	}
}

// saveSession snapshots the world on its own tick goroutine, then writes the
// bytes from a worker goroutine so a slow database never stalls a tick.
func (m *Manager) saveSession(s *Session) {
	s.Enqueue(func(now int64) {
		state, err := json.Marshal(s.W.Snapshot(now))
		if err != nil {
			m.log.Error("marshal snapshot", zap.String("session", s.ID), zap.Error(err))
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.store.SaveSnapshot(ctx, s.ID, state); err != nil {
				m.log.Error("save snapshot", zap.String("session", s.ID), zap.Error(err))
				return
			}
			m.log.Debug("session saved", zap.String("session", s.ID))
		}()
	})
}

// reapInactive saves and stops sessions that have had no subscribers and no
// actions for the configured timeout.
func (m *Manager) reapInactive(now int64) {
	timeout := m.cfg.Session.InactiveTimeout.Milliseconds()

	m.mu.Lock()
	var stale []*Session
	for _, s := range m.sessions {
		if s.SubscriberCount() == 0 && now-s.LastActive() > timeout {
			stale = append(stale, s)
			delete(m.sessions, s.ID)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Stop()
		m.saveStopped(s)
		m.log.Info("reaped inactive session", zap.String("session", s.ID))
	}
}

// saveStopped persists a session whose tick loop has already exited, so the
// world can be read directly.
func (m *Manager) saveStopped(s *Session) {
	state, err := json.Marshal(s.W.Snapshot(time.Now().UnixMilli()))
	if err != nil {
		m.log.Error("marshal snapshot", zap.String("session", s.ID), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.store.SaveSnapshot(ctx, s.ID, state); err != nil {
		m.log.Error("save snapshot", zap.String("session", s.ID), zap.Error(err))
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
		m.saveStopped(s)
	}
	m.log.Info("all sessions stopped", zap.Int("count", len(sessions)))
}
