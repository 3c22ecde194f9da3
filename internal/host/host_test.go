package host

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/catalog/db"
	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"github.com/Mschirtzinger/hardlinks/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pathA = catalog.MustParsePath("/z/home/u/a.txt")
	pathB = catalog.MustParsePath("/z/home/u/b.txt")
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	cat, err := db.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	return Assemble(cat, vault.NewMem("/vault"), Options{})
}

func makeLink(t *testing.T, h *Host, sess *catalog.Session, source, link catalog.LogicalPath) {
	t.Helper()
	text := fmt.Sprintf(`@external rule { {"operation": "hard_links_make_link", "logical_path": %q, "link_name": %q} }`, source, link)
	code, err := h.ExecRuleText(context.Background(), sess, text)
	require.NoError(t, err)
	require.Equal(t, plugin.CodeSuccess, code)
}

// The documented scenario, end to end against the SQLite catalog.
func TestScenario(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	sess := catalog.NewSession("u")
	admin := catalog.NewAdminSession("rods")

	// a.txt lives at /vault/0001.
	require.NoError(t, h.Vault().Write("/vault/0001", []byte("payload")))
	require.NoError(t, h.Catalog().RegisterPhysicalPath(ctx, sess, pathA, "/vault/0001"))

	makeLink(t, h, sess, pathA, pathB)

	infoA, err := h.Stat(ctx, pathA)
	require.NoError(t, err)
	infoB, err := h.Stat(ctx, pathB)
	require.NoError(t, err)
	assert.Equal(t, "/vault/0001", infoB.PhysicalPath)
	assert.NotEmpty(t, infoA.GroupID)
	assert.Equal(t, infoA.GroupID, infoB.GroupID)
	assert.Equal(t, []catalog.LogicalPath{pathB}, infoA.Siblings)
	assert.Equal(t, 2, infoA.PayloadRefs)

	// b.txt's payload moves to /vault/0002.
	require.NoError(t, h.Vault().Move("/vault/0001", "/vault/0002"))
	require.NoError(t, admin.Sudo(func() error {
		return h.Catalog().SetPhysicalPath(ctx, admin, pathB, "/vault/0002")
	}))
	rename := &plugin.DataObjCopyInput{Dest: plugin.DataObjInput{ObjPath: pathB.String()}, Src: plugin.DataObjInput{ObjPath: pathB.String()}}
	_, err = h.Plugin().ExecRule(ctx, plugin.EventRenamePost, rename, plugin.SessionCallback{Sess: sess})
	require.NoError(t, err)

	obj, err := h.Catalog().GetObject(ctx, pathA)
	require.NoError(t, err)
	assert.Equal(t, "/vault/0002", obj.PhysicalPath)

	// Unlinking b.txt only detaches it.
	res, err := h.Unlink(ctx, sess, pathB)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.PayloadRemoved)
	_, err = h.Catalog().GetObject(ctx, pathB)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.True(t, h.Vault().Exists("/vault/0002"))

	infoA, err = h.Stat(ctx, pathA)
	require.NoError(t, err)
	assert.Equal(t, "/vault/0002", infoA.PhysicalPath)
	assert.Empty(t, infoA.Siblings)
	assert.Equal(t, 1, infoA.PayloadRefs)

	// a.txt is the last member: the default deletion destroys the payload.
	res, err = h.Unlink(ctx, sess, pathA)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.True(t, res.PayloadRemoved)
	assert.False(t, h.Vault().Exists("/vault/0002"))
}

func TestPutRenamePropagates(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	sess := catalog.NewSession("u")

	_, err := h.Put(ctx, sess, pathA, []byte("hello"))
	require.NoError(t, err)
	makeLink(t, h, sess, pathA, pathB)

	dst := catalog.MustParsePath("/z/home/u/renamed/c.txt")
	require.NoError(t, h.Rename(ctx, sess, pathB, dst))

	info, err := h.Stat(ctx, pathA)
	require.NoError(t, err)
	assert.Equal(t, "/vault/home/u/renamed/c.txt", info.PhysicalPath)
	assert.True(t, info.PayloadFound)
	assert.Equal(t, []catalog.LogicalPath{dst}, info.Siblings)

	data, err := h.Vault().Read(info.PhysicalPath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestPut_RefusesOccupiedVaultPath(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	sess := catalog.NewSession("u")

	_, err := h.Put(ctx, sess, pathA, []byte("one"))
	require.NoError(t, err)
	makeLink(t, h, sess, pathA, pathB)

	// a.txt goes away but b.txt still uses its payload.
	res, err := h.Unlink(ctx, sess, pathA)
	require.NoError(t, err)
	require.True(t, res.Skipped)

	_, err = h.Put(ctx, sess, pathA, []byte("two"))
	assert.ErrorIs(t, err, ErrPayloadExists)

	data, err := h.Vault().Read(h.Vault().PathFor(pathA))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestTrim(t *testing.T) {
	ctx := context.Background()
	var events []plugin.HookEvent
	cat, err := db.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	h := Assemble(cat, vault.NewMem("/vault"), Options{OnEvent: func(ev plugin.HookEvent) { events = append(events, ev) }})
	sess := catalog.NewSession("u")

	_, err = h.Put(ctx, sess, pathA, []byte("x"))
	require.NoError(t, err)
	makeLink(t, h, sess, pathA, pathB)

	res, err := h.Trim(ctx, sess, pathB)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	res, err = h.Trim(ctx, sess, pathA)
	require.NoError(t, err)
	assert.True(t, res.PayloadRemoved)

	var names []string
	for _, ev := range events {
		names = append(names, ev.Event+":"+ev.Outcome)
	}
	assert.Equal(t, []string{
		plugin.EventTrimPre + ":skip",
		plugin.EventTrimPost + ":continue",
		plugin.EventTrimPre + ":continue",
		plugin.EventTrimPost + ":continue",
	}, names)
}

func TestUnlink_Missing(t *testing.T) {
	h := newTestHost(t)

	_, err := h.Unlink(context.Background(), catalog.NewSession("u"), pathA)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
