package race

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/catalog/db"
	"github.com/Mschirtzinger/hardlinks/internal/host"
	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"github.com/Mschirtzinger/hardlinks/internal/vault"
)

var source = catalog.MustParsePath("/z/home/rods/src.dat")

// TestRun_AgainstHost races link creation on a real SQLite catalog.
func TestRun_AgainstHost(t *testing.T) {
	ctx := context.Background()
	cat, err := db.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	defer cat.Close()

	h := host.Assemble(cat, vault.NewMem("/vault"), host.Options{})
	if _, err := h.Put(ctx, catalog.NewSession("rods"), source, []byte("payload")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	report, err := Run(ctx, h, Options{Source: source, Links: 8, Concurrency: 4})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(report.Errors) > 0 {
		t.Errorf("Got %d errors: %v", len(report.Errors), report.Errors)
	}
	if len(report.Untagged) > 0 {
		t.Errorf("Untagged objects: %v", report.Untagged)
	}
	if len(report.GroupIDs) < 1 {
		t.Errorf("Expected at least one group id, got none")
	}
	if report.Latency.TotalCalls != 8 {
		t.Errorf("Expected 8 calls, got %d", report.Latency.TotalCalls)
	}

	for _, link := range report.Links {
		obj, err := cat.GetObject(ctx, link)
		if err != nil {
			t.Fatalf("link %s missing: %v", link, err)
		}
		if obj.PhysicalPath != h.Vault().PathFor(source) {
			t.Errorf("link %s points at %s", link, obj.PhysicalPath)
		}
	}

	var buf bytes.Buffer
	report.PrintStats(&buf)
	t.Log("\n" + buf.String())
}

// scriptedTarget hands out a new group for every odd link.
type scriptedTarget struct {
	mu     sync.Mutex
	groups map[catalog.LogicalPath]string
	fail   catalog.LogicalPath
}

func (s *scriptedTarget) ExecRuleText(_ context.Context, _ *catalog.Session, text string) (plugin.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < 4; i++ {
		link := LinkName(source, i)
		if !strings.Contains(text, link.String()) {
			continue
		}
		if link == s.fail {
			return plugin.CodeContinue, errors.New("boom")
		}
		s.groups[link] = []string{"g-even", "g-odd"}[i%2]
	}
	s.groups[source] = "g-even"
	return plugin.CodeSuccess, nil
}

func (s *scriptedTarget) Stat(_ context.Context, p catalog.LogicalPath) (*host.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[p]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &host.ObjectInfo{Path: p, GroupID: group}, nil
}

func TestRun_ReportsFragmentationAndErrors(t *testing.T) {
	target := &scriptedTarget{
		groups: make(map[catalog.LogicalPath]string),
		fail:   LinkName(source, 3),
	}

	report, err := Run(context.Background(), target, Options{Source: source, Links: 4})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !report.Fragmented() {
		t.Errorf("Expected fragmentation, got groups %v", report.GroupIDs)
	}
	if len(report.GroupIDs) != 2 || report.GroupIDs[0] != "g-even" || report.GroupIDs[1] != "g-odd" {
		t.Errorf("GroupIDs = %v", report.GroupIDs)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "boom") {
		t.Errorf("Errors = %v", report.Errors)
	}
}

func TestRun_InvalidSource(t *testing.T) {
	if _, err := Run(context.Background(), &scriptedTarget{}, Options{Source: "relative"}); err == nil {
		t.Fatal("expected error for invalid source")
	}
}

func TestLinkName(t *testing.T) {
	if got := LinkName(source, 7); got != "/z/home/rods/src.dat.link007" {
		t.Errorf("LinkName() = %q", got)
	}
}

func TestComputeLatencyStats(t *testing.T) {
	stats := computeLatencyStats([]time.Duration{3 * time.Millisecond, time.Millisecond, 2 * time.Millisecond})

	if stats.Min != time.Millisecond || stats.Max != 3*time.Millisecond {
		t.Errorf("Min/Max = %v/%v", stats.Min, stats.Max)
	}
	if stats.Mean != 2*time.Millisecond || stats.P50 != 2*time.Millisecond {
		t.Errorf("Mean/P50 = %v/%v", stats.Mean, stats.P50)
	}
	if empty := computeLatencyStats(nil); empty.TotalCalls != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
