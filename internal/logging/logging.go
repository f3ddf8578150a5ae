// Package logging provides small structured-logging utilities shared across
// the agent.
//
// Design principles:
//   - Logging is dependency-injected, never global
//   - Each component scopes its own logger once, at construction time
//   - slog.With() attaches default attributes ("component", ...)
//   - A missing logger falls back to a discard logger, never a nil panic
//
// Global configuration (output format, level, destination) belongs only in
// cmd/vantage's main(). Components must never call slog.SetDefault.
package logging

import (
	"context"
	"log/slog"
	"maps"
	"sync/atomic"
)

// discardHandler discards every record. Used as the default logger so
// components never need a nil check.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that throws away everything written to it.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger if non-nil, otherwise a discard logger. Use this
// for every component constructor that takes an optional *slog.Logger:
//
//	func New(logger *slog.Logger) *Scheduler {
//	    logger = logging.Default(logger)
//	    return &Scheduler{logger: logger.With("component", "scheduler")}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// ComponentFilterHandler wraps a base slog.Handler and applies a
// per-component minimum level, so an operator can turn on debug logging for
// one component (e.g. "catalog" while chasing a sync bug) without raising
// the verbosity of the scheduler or worker pool.
//
// Handle() inspects each record for a "component" attribute; records below
// that component's configured minimum (or the handler's default minimum, if
// the component has no override) are dropped before reaching the base
// handler. Level changes use copy-on-write so Handle() never takes a lock.
type ComponentFilterHandler struct {
	next         slog.Handler
	defaultLevel slog.Level

	// preAttrs holds attributes bound via WithAttrs before any group, so a
	// "component" attached with logger.With(...) is still visible to Handle.
	preAttrs []slog.Attr

	// levelSnapshot is shared by every handler derived via WithAttrs/WithGroup
	// so SetLevel affects all of them.
	levelSnapshot *atomic.Pointer[map[string]slog.Level]
}

// NewComponentFilterHandler wraps next, using defaultLevel for any component
// without an explicit override.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	snapshot := &atomic.Pointer[map[string]slog.Level]{}
	empty := make(map[string]slog.Level)
	snapshot.Store(&empty)

	return &ComponentFilterHandler{
		next:          next,
		defaultLevel:  defaultLevel,
		levelSnapshot: snapshot,
	}
}

// Enabled always defers to Handle, since the component attribute isn't known
// until the record (and its attributes) exist.
func (h *ComponentFilterHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	levels := *h.levelSnapshot.Load()

	component := h.findComponent(r)
	minLevel := h.defaultLevel
	if component != "" {
		if lvl, ok := levels[component]; ok {
			minLevel = lvl
		}
	}

	if r.Level < minLevel {
		return nil
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *ComponentFilterHandler) findComponent(r slog.Record) string {
	for _, attr := range h.preAttrs {
		if attr.Key == "component" {
			if s, ok := attr.Value.Resolve().Any().(string); ok {
				return s
			}
		}
	}

	var component string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			if s, ok := a.Value.Resolve().Any().(string); ok {
				component = s
				return false
			}
		}
		return true
	})
	return component
}

func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	newPreAttrs := make([]slog.Attr, len(h.preAttrs), len(h.preAttrs)+len(attrs))
	copy(newPreAttrs, h.preAttrs)
	newPreAttrs = append(newPreAttrs, attrs...)

	return &ComponentFilterHandler{
		next:          h.next.WithAttrs(attrs),
		defaultLevel:  h.defaultLevel,
		preAttrs:      newPreAttrs,
		levelSnapshot: h.levelSnapshot,
	}
}

func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ComponentFilterHandler{
		next:          h.next.WithGroup(name),
		defaultLevel:  h.defaultLevel,
		preAttrs:      h.preAttrs,
		levelSnapshot: h.levelSnapshot,
	}
}

// SetLevel sets the minimum level for a component. Safe to call while the
// agent is running.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	oldLevels := *h.levelSnapshot.Load()
	newLevels := make(map[string]slog.Level, len(oldLevels)+1)
	maps.Copy(newLevels, oldLevels)
	newLevels[component] = level
	h.levelSnapshot.Store(&newLevels)
}

// ClearLevel reverts a component to the handler's default level.
func (h *ComponentFilterHandler) ClearLevel(component string) {
	oldLevels := *h.levelSnapshot.Load()
	if _, ok := oldLevels[component]; !ok {
		return
	}
	newLevels := make(map[string]slog.Level, len(oldLevels))
	for k, v := range oldLevels {
		if k != component {
			newLevels[k] = v
		}
	}
	h.levelSnapshot.Store(&newLevels)
}

// Level returns the effective minimum level for component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	levels := *h.levelSnapshot.Load()
	if lvl, ok := levels[component]; ok {
		return lvl
	}
	return h.defaultLevel
}
