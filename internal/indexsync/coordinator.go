// Package indexsync keeps a search.Engine consistent with the note store
// under an incremental, periodic, or hybrid policy.
package indexsync

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/search"
)

// Mode selects when mutations reach the index.
type Mode string

const (
	// Incremental pushes every change immediately.
	Incremental Mode = "incremental"
	// Periodic defers everything to full rebuilds once the interval elapses.
	Periodic Mode = "periodic"
	// Hybrid pushes immediately and also rebuilds on the interval.
	Hybrid Mode = "hybrid"
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Incremental, Periodic, Hybrid:
		return m, nil
	}
	return "", fmt.Errorf("unknown index mode %q", s)
}

func (m Mode) pushes() bool   { return m == Incremental || m == Hybrid }
func (m Mode) rebuilds() bool { return m == Periodic || m == Hybrid }

// Policy is the indexing configuration consulted on every mutation.
type Policy struct {
	AutoIndex       bool
	Mode            Mode
	RebuildInterval time.Duration
}

// ChangeKind is the store mutation that produced a Change.
type ChangeKind int

const (
	Created ChangeKind = iota
	Updated
	Renamed
	Moved
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Renamed:
		return "renamed"
	case Moved:
		return "moved"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Change describes one store mutation. Note is the resulting note (nil for
// Deleted); OldID is the previous id for Renamed, Moved, and Deleted.
type Change struct {
	Kind  ChangeKind
	OldID string
	Note  *models.Note
}

// Source supplies every note for a full rebuild.
type Source interface {
	LoadAll() ([]models.Note, error)
}

// Status reports the index lifecycle.
type Status struct {
	Documents   uint64    `json:"documents"`
	LastRebuild time.Time `json:"last_rebuild"`
	Mode        Mode      `json:"mode"`
	AutoIndex   bool      `json:"auto_index"`
}

// Coordinator decides, per mutation, whether the index is updated now or
// left for the next full rebuild. The policy, the rebuild clock, and index
// writes are guarded by separate locks; searches take none of them.
type Coordinator struct {
	engine search.Engine
	logger *slog.Logger
	now    func() time.Time

	policyMu sync.RWMutex
	policy   Policy

	writeMu sync.Mutex // serializes pushes and rebuilds against the engine

	clockMu     sync.RWMutex
	lastRebuild time.Time

	onRebuild func(Status)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithRebuildHook registers fn to run after each successful full rebuild.
func WithRebuildHook(fn func(Status)) Option {
	return func(c *Coordinator) { c.onRebuild = fn }
}

// New creates a Coordinator for engine.
func New(engine search.Engine, policy Policy, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine: engine,
		policy: policy,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the current policy.
func (c *Coordinator) Policy() Policy {
	c.policyMu.RLock()
	defer c.policyMu.RUnlock()
	return c.policy
}

// SetPolicy replaces the policy for subsequent mutations.
func (c *Coordinator) SetPolicy(p Policy) {
	c.policyMu.Lock()
	c.policy = p
	c.policyMu.Unlock()
}

// LastRebuild returns when the last full rebuild finished; zero if none has.
func (c *Coordinator) LastRebuild() time.Time {
	c.clockMu.RLock()
	defer c.clockMu.RUnlock()
	return c.lastRebuild
}

// RebuildDue reports whether interval has elapsed since the last rebuild.
// An index that was never rebuilt is always due.
func (c *Coordinator) RebuildDue(interval time.Duration) bool {
	last := c.LastRebuild()
	if last.IsZero() {
		return true
	}
	return c.now().Sub(last) >= interval
}

// Apply runs the policy for one mutation. A failure is returned as an
// apperr.ErrIndex; the mutation itself is never undone.
func (c *Coordinator) Apply(src Source, ch Change) error {
	p := c.Policy()
	if !p.AutoIndex {
		return nil
	}
	if p.Mode.pushes() {
		if err := c.push(ch); err != nil {
			return fmt.Errorf("indexsync: %s: %w: %w", ch.Kind, apperr.ErrIndex, err)
		}
	}
	if p.Mode.rebuilds() && c.RebuildDue(p.RebuildInterval) {
		c.logger.Info("rebuild: interval elapsed", slog.String("trigger", ch.Kind.String()))
		return c.Rebuild(src)
	}
	return nil
}

func (c *Coordinator) push(ch Change) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	switch ch.Kind {
	case Created, Updated:
		if ch.Note == nil {
			return fmt.Errorf("missing note")
		}
		return c.engine.AddDocument(search.DocumentFromNote(ch.Note))
	case Renamed, Moved:
		if ch.Note == nil {
			return fmt.Errorf("missing note")
		}
		if ch.OldID != "" && ch.OldID != ch.Note.ID {
			if err := c.engine.RemoveDocument(ch.OldID); err != nil {
				return err
			}
		}
		return c.engine.AddDocument(search.DocumentFromNote(ch.Note))
	case Deleted:
		return c.engine.RemoveDocument(ch.OldID)
	}
	return fmt.Errorf("unknown change kind %d", ch.Kind)
}

// Rebuild loads every note from src and replaces the index with them. It
// is not cancellable; concurrent calls run one after another.
func (c *Coordinator) Rebuild(src Source) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	started := c.now()
	notes, err := src.LoadAll()
	if err != nil {
		return fmt.Errorf("indexsync: rebuild: %w: %w", apperr.ErrIndex, err)
	}
	docs := make([]search.Document, len(notes))
	for i := range notes {
		docs[i] = search.DocumentFromNote(&notes[i])
	}
	if err := c.engine.RebuildIndex(docs); err != nil {
		return fmt.Errorf("indexsync: rebuild: %w: %w", apperr.ErrIndex, err)
	}

	finished := c.now()
	c.clockMu.Lock()
	c.lastRebuild = finished
	c.clockMu.Unlock()

	c.logger.Info("rebuild: completed",
		slog.Int("documents", len(docs)),
		slog.Duration("took", finished.Sub(started)))

	if c.onRebuild != nil {
		p := c.Policy()
		c.onRebuild(Status{Documents: uint64(len(docs)), LastRebuild: finished, Mode: p.Mode, AutoIndex: p.AutoIndex})
	}
	return nil
}

// Search queries the index. It does not wait for pushes or rebuilds.
func (c *Coordinator) Search(query string, limit int) ([]models.SearchResult, error) {
	res, err := c.engine.Search(query, limit)
	if err != nil {
		return nil, fmt.Errorf("indexsync: search: %w: %w", apperr.ErrIndex, err)
	}
	return res, nil
}

// SearchField queries a single field.
func (c *Coordinator) SearchField(field, value string, limit int) ([]models.SearchResult, error) {
	res, err := c.engine.SearchField(field, value, limit)
	if err != nil {
		return nil, fmt.Errorf("indexsync: search %s: %w: %w", field, apperr.ErrIndex, err)
	}
	return res, nil
}

// Status returns document count, last rebuild time, and the policy.
func (c *Coordinator) Status() (Status, error) {
	n, err := c.engine.DocumentCount()
	if err != nil {
		return Status{}, fmt.Errorf("indexsync: status: %w: %w", apperr.ErrIndex, err)
	}
	p := c.Policy()
	return Status{Documents: n, LastRebuild: c.LastRebuild(), Mode: p.Mode, AutoIndex: p.AutoIndex}, nil
}

// Optimize asks the engine to compact itself.
func (c *Coordinator) Optimize() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.engine.Optimize(); err != nil {
		return fmt.Errorf("indexsync: optimize: %w: %w", apperr.ErrIndex, err)
	}
	return nil
}
