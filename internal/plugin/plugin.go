// Package plugin exposes the hard-link engine to a host as a rule engine
// plugin: named hook handlers fired around catalog operations, plus a
// direct invocation surface taking JSON rule text.
package plugin

import (
	"context"
	"sort"
	"time"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/hardlink"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/rs/zerolog"
)

// Name identifies the plugin in structured logs.
const Name = "hard_links"

// Callback hands the plugin the caller's session.
type Callback interface {
	Session() *catalog.Session
}

// SessionCallback adapts a session to Callback.
type SessionCallback struct {
	Sess *catalog.Session
}

// Session implements Callback.
func (c SessionCallback) Session() *catalog.Session {
	return c.Sess
}

// HookEvent describes one executed hook, for observers.
type HookEvent struct {
	Event    string              `json:"event"`
	Path     catalog.LogicalPath `json:"path,omitempty"`
	Outcome  string              `json:"outcome"`
	Error    string              `json:"error,omitempty"`
	Duration time.Duration       `json:"duration_ns"`
	Time     time.Time           `json:"time"`
}

// Config wires a Plugin.
type Config struct {
	Engine  *hardlink.Engine
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// OnEvent, when set, is called after every hook execution.
	OnEvent func(HookEvent)
}

type handlerKind int

const (
	kindHandler handlerKind = iota
	kindNoop
	kindNotSupported
)

type hookHandler func(ctx context.Context, req Request, sess *catalog.Session) (Code, error)

type hookEntry struct {
	kind handlerKind
	fn   hookHandler
}

type opHandler func(ctx context.Context, args opArgs, sess *catalog.Session) (Code, error)

type opEntry struct {
	kind handlerKind
	fn   opHandler
}

// Plugin dispatches hooks and direct operations to the engine.
type Plugin struct {
	engine  *hardlink.Engine
	logger  zerolog.Logger
	metrics *metrics.Metrics
	onEvent func(HookEvent)

	hooks map[string]hookEntry
	ops   map[string]opEntry
}

// New builds a Plugin. The handler tables are fixed here.
func New(cfg Config) *Plugin {
	p := &Plugin{
		engine:  cfg.Engine,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		onEvent: cfg.OnEvent,
	}

	p.hooks = map[string]hookEntry{
		EventRenamePost: {kind: kindHandler, fn: p.renamePost},
		EventUnlinkPre:  {kind: kindHandler, fn: p.deletePre},
		EventTrimPre:    {kind: kindHandler, fn: p.deletePre},
		EventTrimPost:   {kind: kindNoop},
	}

	p.ops = map[string]opEntry{
		OpMakeLink:        {kind: kindHandler, fn: p.makeLink},
		OpCountLinks:      {kind: kindNotSupported},
		OpListDataObjects: {kind: kindNotSupported},
	}

	return p
}

// Start is called by the host when the plugin is loaded.
func (p *Plugin) Start(instance string) error {
	p.logger.Debug().Str("instance", instance).Msg("Rule engine plugin started")
	return nil
}

// Stop is called by the host on shutdown.
func (p *Plugin) Stop(instance string) error {
	p.logger.Debug().Str("instance", instance).Msg("Rule engine plugin stopped")
	return nil
}

// RuleExists reports whether name is a hook this plugin handles.
func (p *Plugin) RuleExists(name string) bool {
	_, ok := p.hooks[name]
	return ok
}

// ListRules returns every operation and hook name, operations first.
func (p *Plugin) ListRules() []string {
	ops := make([]string, 0, len(p.ops))
	for name := range p.ops {
		ops = append(ops, name)
	}
	sort.Strings(ops)

	hooks := make([]string, 0, len(p.hooks))
	for name := range p.hooks {
		hooks = append(hooks, name)
	}
	sort.Strings(hooks)

	return append(ops, hooks...)
}

// logError writes the plugin's structured error record.
func (p *Plugin) logError(function string, err error) {
	p.logger.Error().
		Str("rule_engine_plugin", Name).
		Str("rule_engine_plugin_function", function).
		Str("log_message", err.Error()).
		Int("status", int(catalog.StatusOf(err))).
		Msg("Rule execution failed")
}

// report logs err and appends it to the caller's error stack.
func (p *Plugin) report(function string, sess *catalog.Session, err error) {
	p.logError(function, err)
	if sess != nil {
		sess.AddErrorMsg(catalog.StatusRuntime, err.Error())
	}
}

func sessionOf(cb Callback) *catalog.Session {
	if cb == nil {
		return nil
	}
	return cb.Session()
}
