package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/catalog/db"
	"github.com/Mschirtzinger/hardlinks/internal/host"
	"github.com/Mschirtzinger/hardlinks/internal/vault"
)

const yamlManifest = `objects:
  - path: /z/home/rods/a.txt
    content: hello
    metadata:
      - attribute: project
        value: apollo
  - path: /z/home/rods/b.txt
    link_to: /z/home/rods/a.txt
  - path: /z/home/rods/ext.dat
    physical_path: /mnt/archive/ext.dat
    resource: "20001"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func newTestHost(t *testing.T) *host.Host {
	t.Helper()

	cat, err := db.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return host.Assemble(cat, vault.NewMem("/vault"), host.Options{})
}

func TestFromJSONL(t *testing.T) {
	path := writeFile(t, "seed.jsonl", `{"path": "/z/a", "content": "x"}
{"path": "/z/b", "link_to": "/z/a"}
`)

	entries, err := FromJSONL(path)
	if err != nil {
		t.Fatalf("FromJSONL failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].LinkTo != "/z/a" {
		t.Errorf("expected link_to /z/a, got %q", entries[1].LinkTo)
	}
}

func TestFromJSONL_Invalid(t *testing.T) {
	if _, err := FromJSONL("/nonexistent/path.jsonl"); err == nil {
		t.Error("expected error for nonexistent file")
	}

	path := writeFile(t, "bad.jsonl", "{\"path\": \"/z/a\"}\nnot json\n")
	_, err := FromJSONL(path)
	if err == nil || !strings.Contains(err.Error(), "entry 2") {
		t.Errorf("expected error at entry 2, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	entries, err := Load(writeFile(t, "seed.yaml", yamlManifest))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Metadata[0].Value != "apollo" {
		t.Errorf("metadata not decoded: %+v", entries[0].Metadata)
	}
	if entries[2].Resource != "20001" {
		t.Errorf("resource not decoded: %q", entries[2].Resource)
	}

	if _, err := Load(writeFile(t, "seed.txt", "")); err == nil {
		t.Error("expected error for unknown extension")
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)

	entries, err := Load(writeFile(t, "seed.yaml", yamlManifest))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	result, err := Import(ctx, h, entries, Options{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Objects != 2 || result.Links != 1 || result.Metadata != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	info, err := h.Stat(ctx, catalog.MustParsePath("/z/home/rods/b.txt"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.GroupID == "" || len(info.Siblings) != 1 || info.Siblings[0] != "/z/home/rods/a.txt" {
		t.Errorf("link not grouped: %+v", info)
	}
	if !info.PayloadFound {
		t.Error("link payload should be the source's payload")
	}

	ext, err := h.Catalog().GetObject(ctx, catalog.MustParsePath("/z/home/rods/ext.dat"))
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if ext.ResourceID != "20001" || ext.PhysicalPath != "/mnt/archive/ext.dat" {
		t.Errorf("unexpected registration: %+v", ext)
	}
}

func TestImport_RecordsBadEntries(t *testing.T) {
	h := newTestHost(t)

	entries := []Entry{
		{Path: "relative.txt", Content: "x"},
		{Path: "/z/home/rods/a.txt", Content: "x"},
		{Path: "/z/home/rods/a.txt", Content: "again"},
		{Path: "/z/home/rods/b.txt", LinkTo: "/z/home/rods/missing.txt"},
		{Path: "/z/home/rods/c.txt", Content: "x", Metadata: []catalog.AVU{{Attribute: catalog.HardLinkAttribute, Value: "g"}}},
	}

	result, err := Import(context.Background(), h, entries, Options{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Objects != 1 || result.Links != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Errors) != 4 {
		t.Errorf("expected 4 errors, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestImport_DryRun(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)

	entries := []Entry{
		{Path: "/z/home/rods/a.txt", Content: "x"},
		{Path: "/z/home/rods/b.txt", LinkTo: "/z/home/rods/a.txt"},
	}
	result, err := Import(ctx, h, entries, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Objects != 1 || result.Links != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	count, err := h.Catalog().GetObjectCountContext(ctx)
	if err != nil {
		t.Fatalf("GetObjectCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("dry run wrote %d objects", count)
	}
}
