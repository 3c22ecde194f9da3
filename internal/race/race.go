// Package race drives concurrent link creation against a host.
//
// Link creation does not lock the group: two calls linking to the same
// untagged source can each allocate a fresh group id, and the later tag on
// the source wins. Run issues many concurrent make-link calls from one
// source and reports how many distinct group ids the links ended up with.
package race

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/host"
	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"golang.org/x/sync/errgroup"
)

// Target is what Run drives. *host.Host satisfies it.
type Target interface {
	ExecRuleText(ctx context.Context, sess *catalog.Session, text string) (plugin.Code, error)
	Stat(ctx context.Context, p catalog.LogicalPath) (*host.ObjectInfo, error)
}

// Options configures a run.
type Options struct {
	// Source is the existing data object every link points at.
	Source catalog.LogicalPath

	// Links is the number of links to create (default 10).
	Links int

	// Concurrency bounds in-flight calls (default: Links).
	Concurrency int

	// User runs the calls (default "rods").
	User string
}

// LatencyStats captures make-link call latency.
type LatencyStats struct {
	Min        time.Duration `json:"min"`
	Max        time.Duration `json:"max"`
	Mean       time.Duration `json:"mean"`
	P50        time.Duration `json:"p50"`
	P95        time.Duration `json:"p95"`
	P99        time.Duration `json:"p99"`
	TotalCalls int           `json:"total_calls"`
}

// Report is the outcome of a run.
type Report struct {
	Source   catalog.LogicalPath   `json:"source"`
	Links    []catalog.LogicalPath `json:"links"`
	GroupIDs []string              `json:"group_ids"`
	Untagged []catalog.LogicalPath `json:"untagged,omitempty"`
	Errors   []string              `json:"errors,omitempty"`
	Latency  *LatencyStats         `json:"latency"`
}

// Fragmented reports whether the links ended up in more than one group.
func (r *Report) Fragmented() bool {
	return len(r.GroupIDs) > 1
}

// Run creates opts.Links links to opts.Source concurrently and inspects
// the resulting groups. Individual call failures are recorded in the
// report; Run itself fails only on bad options or a cancelled context.
func Run(ctx context.Context, target Target, opts Options) (*Report, error) {
	if err := opts.Source.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}
	if opts.Links <= 0 {
		opts.Links = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = opts.Links
	}
	if opts.User == "" {
		opts.User = "rods"
	}

	report := &Report{
		Source: opts.Source,
		Links:  make([]catalog.LogicalPath, opts.Links),
	}
	for i := range report.Links {
		report.Links[i] = LinkName(opts.Source, i)
	}

	var mu sync.Mutex
	durations := make([]time.Duration, 0, opts.Links)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, link := range report.Links {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			text, err := makeLinkRule(opts.Source, link)
			if err != nil {
				return err
			}

			start := time.Now()
			_, callErr := target.ExecRuleText(gctx, catalog.NewSession(opts.User), text)
			elapsed := time.Since(start)

			mu.Lock()
			durations = append(durations, elapsed)
			if callErr != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", link, callErr))
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(report.Errors)
	report.Latency = computeLatencyStats(durations)

	seen := make(map[string]bool)
	for _, p := range append([]catalog.LogicalPath{opts.Source}, report.Links...) {
		info, err := target.Stat(ctx, p)
		if err != nil {
			// Links whose creation failed have no record.
			continue
		}
		if info.GroupID == "" {
			report.Untagged = append(report.Untagged, p)
			continue
		}
		if !seen[info.GroupID] {
			seen[info.GroupID] = true
			report.GroupIDs = append(report.GroupIDs, info.GroupID)
		}
	}
	sort.Strings(report.GroupIDs)

	return report, nil
}

// LinkName returns the name of the i-th link created for source.
func LinkName(source catalog.LogicalPath, i int) catalog.LogicalPath {
	return catalog.Join(source.Collection(), fmt.Sprintf("%s.link%03d", source.Name(), i))
}

func makeLinkRule(source, link catalog.LogicalPath) (string, error) {
	doc, err := json.Marshal(map[string]string{
		"operation":    plugin.OpMakeLink,
		"logical_path": source.String(),
		"link_name":    link.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode rule: %w", err)
	}
	return "@external rule { " + string(doc) + " }", nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Mean:       sum / time.Duration(len(durations)),
		P50:        sorted[len(sorted)*50/100],
		P95:        sorted[len(sorted)*95/100],
		P99:        sorted[len(sorted)*99/100],
		TotalCalls: len(durations),
	}
}

// PrintStats writes a human-readable summary of the report to w.
func (r *Report) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Source:        %s\n", r.Source)
	fmt.Fprintf(w, "Links:         %d\n", len(r.Links))
	fmt.Fprintf(w, "Errors:        %d\n", len(r.Errors))
	fmt.Fprintf(w, "Group ids:     %d\n", len(r.GroupIDs))
	for _, id := range r.GroupIDs {
		fmt.Fprintf(w, "  %s\n", id)
	}
	if len(r.Untagged) > 0 {
		fmt.Fprintf(w, "Untagged:      %d\n", len(r.Untagged))
	}
	if l := r.Latency; l != nil {
		fmt.Fprintf(w, "Latency:\n")
		fmt.Fprintf(w, "  Min:           %v\n", l.Min)
		fmt.Fprintf(w, "  P50 (Median):  %v\n", l.P50)
		fmt.Fprintf(w, "  Mean:          %v\n", l.Mean)
		fmt.Fprintf(w, "  P95:           %v\n", l.P95)
		fmt.Fprintf(w, "  P99:           %v\n", l.P99)
		fmt.Fprintf(w, "  Max:           %v\n", l.Max)
	}
}
