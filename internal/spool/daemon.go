// Package spool provides the rule spool daemon.
//
// The daemon:
// 1. Executes request files already waiting in the spool directory
// 2. Watches the directory for new or rewritten request files
// 3. Debounces bursts of writes to the same file
// 4. Writes <name>.result.json next to each request and removes the request
//
// Request files are rule texts (*.r) or bare JSON documents (*.json), the
// same payloads accepted by the direct invocation surface.
package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// ResultSuffix is appended to a request's file name for its answer.
const ResultSuffix = ".result.json"

// Executor runs rule text on behalf of a session.
type Executor interface {
	ExecRuleText(ctx context.Context, sess *catalog.Session, text string) (plugin.Code, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long a file must stay quiet before it runs.
	DebounceInterval time.Duration

	// User is the session user requests run as.
	User string

	// Logger for daemon activity
	Logger zerolog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 100 * time.Millisecond,
		User:             "rods",
	}
}

// Result is the answer written for one request.
type Result struct {
	Request     string               `json:"request"`
	Operation   string               `json:"operation,omitempty"`
	Code        string               `json:"code,omitempty"`
	Status      int                  `json:"status"`
	StatusName  string               `json:"status_name"`
	Message     string               `json:"message,omitempty"`
	Errors      []catalog.ErrorEntry `json:"errors,omitempty"`
	ProcessedAt time.Time            `json:"processed_at"`
}

// Daemon executes rule files dropped into a directory.
type Daemon struct {
	exec   Executor
	dir    string
	config *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> timestamp
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon with the default configuration.
func New(exec Executor, dir string) (*Daemon, error) {
	return NewWithConfig(exec, dir, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(exec Executor, dir string, config *Config) (*Daemon, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("spool directory cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	if config.User == "" {
		config.User = DefaultConfig().User
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		exec:        exec,
		dir:         dir,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Dir returns the spool directory.
func (d *Daemon) Dir() string {
	return d.dir
}

// Start runs waiting requests, then watches for new ones.
// This blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	log := d.config.Logger
	log.Info().Str("dir", d.dir).Msg("Starting spool daemon")

	if err := d.ProcessExisting(); err != nil {
		return fmt.Errorf("initial spool scan failed: %w", err)
	}

	if err := d.watcher.Add(d.dir); err != nil {
		return fmt.Errorf("failed to watch spool directory: %w", err)
	}

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Warn().Err(err).Msg("Error closing watcher")
	}

	d.wg.Wait()
	d.config.Logger.Info().Msg("Spool daemon stopped")
	return nil
}

// ProcessExisting runs every request already in the spool directory, in
// name order.
func (d *Daemon) ProcessExisting() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to read spool directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsRequest(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := d.ProcessFile(filepath.Join(d.dir, name)); err != nil {
			d.config.Logger.Warn().Err(err).Str("file", name).Msg("Failed to process request")
		}
	}
	return nil
}

// ProcessFile executes one request file, writes its result and removes it.
func (d *Daemon) ProcessFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}

	sess := catalog.NewSession(d.config.User)
	text := string(data)

	code, execErr := d.exec.ExecRuleText(d.ctx, sess, text)

	status := catalog.StatusOf(execErr)
	result := &Result{
		Request:     filepath.Base(path),
		Operation:   operationOf(text),
		Status:      int(status),
		StatusName:  status.String(),
		Errors:      sess.Errors(),
		ProcessedAt: time.Now().UTC(),
	}
	if execErr != nil {
		result.Message = execErr.Error()
	} else {
		result.Code = code.String()
	}

	if err := writeResult(ResultPath(path), result); err != nil {
		return result, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return result, fmt.Errorf("failed to remove request: %w", err)
	}

	d.config.Logger.Info().
		Str("request", result.Request).
		Str("status", result.StatusName).
		Msg("Processed request")
	return result, nil
}

// IsRequest reports whether a file name looks like a spool request.
func IsRequest(name string) bool {
	if strings.HasSuffix(name, ResultSuffix) || strings.HasPrefix(name, ".") {
		return false
	}
	switch filepath.Ext(name) {
	case ".r", ".json":
		return true
	}
	return false
}

// ResultPath returns the result file for a request file. The full request
// name is kept so a.r and a.json answer into different files.
func ResultPath(requestPath string) string {
	return requestPath + ResultSuffix
}

// watchFileEvents monitors filesystem events and queues requests.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Only care about Create and Write
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !IsRequest(filepath.Base(event.Name)) {
				continue
			}

			d.config.Logger.Debug().Str("op", event.Op.String()).Str("file", event.Name).Msg("File event")
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue processes queued requests with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges runs requests that have been quiet long enough.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if _, err := d.ProcessFile(path); err != nil {
			d.config.Logger.Warn().Err(err).Str("file", path).Msg("Failed to process request")
		}
	}
}

func writeResult(path string, result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}

// operationOf extracts the operation name for the result, best effort.
func operationOf(text string) string {
	payload := plugin.StripWrapper(text)
	if !gjson.Valid(payload) {
		return ""
	}
	return gjson.Get(payload, "operation").String()
}
