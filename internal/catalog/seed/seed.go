// Package seed loads data objects into a catalog from manifest files.
//
// Two formats are accepted: JSONL (one Entry per line) and YAML (a document
// with an "objects" list). Entries with link_to are created through the
// plugin's make-link operation after every plain entry, so they land in the
// source's hard-link group exactly as a client-created link would.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/catalog/db"
	"github.com/Mschirtzinger/hardlinks/internal/host"
	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"gopkg.in/yaml.v3"
)

// Entry is one data object in a manifest.
type Entry struct {
	// Path is the logical path to create.
	Path string `json:"path" yaml:"path"`

	// Content becomes the payload, stored at the vault path for Path.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// PhysicalPath registers an existing payload instead of writing Content.
	PhysicalPath string `json:"physical_path,omitempty" yaml:"physical_path,omitempty"`

	// Resource applies to PhysicalPath registrations; empty means default.
	Resource string `json:"resource,omitempty" yaml:"resource,omitempty"`

	// LinkTo makes this entry a hard link to another logical path.
	LinkTo string `json:"link_to,omitempty" yaml:"link_to,omitempty"`

	Metadata []catalog.AVU `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Manifest is the YAML document layout.
type Manifest struct {
	Objects []Entry `yaml:"objects"`
}

// Options configures an import.
type Options struct {
	DryRun bool   // Validate without writing
	User   string // Session user (default "rods")
}

// Result contains statistics about the import.
type Result struct {
	Objects  int
	Links    int
	Metadata int
	Errors   []string
}

// FromJSONL reads a JSONL manifest.
func FromJSONL(path string) ([]Entry, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()

	return DecodeJSONL(file)
}

// DecodeJSONL reads JSONL entries from r.
func DecodeJSONL(r io.Reader) ([]Entry, error) {
	var entries []Entry
	decoder := json.NewDecoder(r)
	lineNum := 0

	for {
		var entry Entry
		if err := decoder.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at entry %d: %w", lineNum+1, err)
		}
		lineNum++
		entries = append(entries, entry)
	}

	return entries, nil
}

// FromYAML reads a YAML manifest.
func FromYAML(path string) ([]Entry, error) {
	// #nosec G304 - controlled path from CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML manifest: %w", err)
	}
	return m.Objects, nil
}

// Load reads a manifest, choosing the format by extension.
func Load(path string) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(path)
	case ".jsonl", ".ndjson", ".json":
		return FromJSONL(path)
	}
	return nil, fmt.Errorf("unsupported manifest format: %s", path)
}

// Import creates every entry on h. Failed entries are recorded in the
// result and skipped; Import returns an error only for a cancelled context.
func Import(ctx context.Context, h *host.Host, entries []Entry, opts Options) (*Result, error) {
	if opts.User == "" {
		opts.User = "rods"
	}
	sess := catalog.NewSession(opts.User)
	result := &Result{}

	var links []Entry
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.LinkTo != "" {
			links = append(links, entry)
			continue
		}

		p, err := entry.validate()
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if opts.DryRun {
			result.Objects++
			result.Metadata += len(entry.Metadata)
			continue
		}

		if entry.PhysicalPath != "" {
			err = h.Catalog().RegisterObject(ctx, sess, p, entry.PhysicalPath, db.RegisterOptions{ResourceID: entry.Resource})
		} else {
			_, err = h.Put(ctx, sess, p, []byte(entry.Content))
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to create %s: %v", p, err))
			continue
		}
		result.Objects++

		result.Metadata += addMetadata(ctx, h, p, entry.Metadata, result)
	}

	for _, entry := range links {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		p, err := entry.validate()
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if opts.DryRun {
			result.Links++
			result.Metadata += len(entry.Metadata)
			continue
		}

		text, err := makeLinkRule(entry.LinkTo, p.String())
		if err == nil {
			_, err = h.ExecRuleText(ctx, sess, text)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to link %s to %s: %v", p, entry.LinkTo, err))
			continue
		}
		result.Links++

		result.Metadata += addMetadata(ctx, h, p, entry.Metadata, result)
	}

	return result, nil
}

func (e Entry) validate() (catalog.LogicalPath, error) {
	p, err := catalog.ParsePath(e.Path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", e.Path, err)
	}
	if e.LinkTo != "" && (e.Content != "" || e.PhysicalPath != "") {
		return "", fmt.Errorf("%s: link_to cannot be combined with content or physical_path", p)
	}
	for _, avu := range e.Metadata {
		if avu.Attribute == catalog.HardLinkAttribute {
			return "", fmt.Errorf("%s: %s metadata is managed by links, use link_to", p, catalog.HardLinkAttribute)
		}
	}
	return p, nil
}

func addMetadata(ctx context.Context, h *host.Host, p catalog.LogicalPath, avus []catalog.AVU, result *Result) int {
	added := 0
	for _, avu := range avus {
		if err := h.Catalog().AddMetadata(ctx, p, avu); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to add %s on %s: %v", avu.Attribute, p, err))
			continue
		}
		added++
	}
	return added
}

func makeLinkRule(source, link string) (string, error) {
	doc, err := json.Marshal(map[string]string{
		"operation":    plugin.OpMakeLink,
		"logical_path": source,
		"link_name":    link,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode rule: %w", err)
	}
	return string(doc), nil
}
