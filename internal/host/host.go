// Package host is a small reference server around the catalog and vault.
//
// It performs the data object operations a real catalog server would
// (put, rename, unlink, trim) and fires the plugin's hooks around them,
// honouring the returned codes the same way: a SkipOperation from a pre
// hook suppresses the default behavior, an error aborts the operation.
package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/catalog/db"
	"github.com/Mschirtzinger/hardlinks/internal/hardlink"
	"github.com/Mschirtzinger/hardlinks/internal/logging"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"github.com/Mschirtzinger/hardlinks/internal/vault"
	"github.com/rs/zerolog"
)

// ErrPayloadExists is returned by Put when the target vault path is taken.
var ErrPayloadExists = errors.New("payload already present at vault path")

// Config wires a Host.
type Config struct {
	Catalog *db.DB
	Vault   *vault.Vault
	Engine  *hardlink.Engine
	Plugin  *plugin.Plugin
	Logger  zerolog.Logger
}

// Host runs data object operations and fires hooks.
type Host struct {
	cat    *db.DB
	vault  *vault.Vault
	engine *hardlink.Engine
	plugin *plugin.Plugin
	logger zerolog.Logger
}

// New builds a Host.
func New(cfg Config) *Host {
	return &Host{
		cat:    cfg.Catalog,
		vault:  cfg.Vault,
		engine: cfg.Engine,
		plugin: cfg.Plugin,
		logger: cfg.Logger,
	}
}

// Options are the optional parts of Assemble.
type Options struct {
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	OnEvent func(plugin.HookEvent)
}

// Assemble builds the engine and plugin over cat and returns a Host
// firing hooks into that plugin.
func Assemble(cat *db.DB, v *vault.Vault, opts Options) *Host {
	engine := hardlink.New(hardlink.Config{
		Catalog: cat,
		Logger:  logging.Component(opts.Logger, "engine"),
		Metrics: opts.Metrics,
	})
	p := plugin.New(plugin.Config{
		Engine:  engine,
		Logger:  logging.Component(opts.Logger, "plugin"),
		Metrics: opts.Metrics,
		OnEvent: opts.OnEvent,
	})
	return New(Config{
		Catalog: cat,
		Vault:   v,
		Engine:  engine,
		Plugin:  p,
		Logger:  logging.Component(opts.Logger, "host"),
	})
}

// Catalog returns the host's catalog.
func (h *Host) Catalog() *db.DB {
	return h.cat
}

// Vault returns the host's vault.
func (h *Host) Vault() *vault.Vault {
	return h.vault
}

// Plugin returns the plugin receiving the host's hooks.
func (h *Host) Plugin() *plugin.Plugin {
	return h.plugin
}

// Put stores data as a new data object at p on the default resource.
func (h *Host) Put(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath, data []byte) (*catalog.DataObject, error) {
	physicalPath := h.vault.PathFor(p)
	if h.vault.Exists(physicalPath) {
		return nil, fmt.Errorf("%w: %s", ErrPayloadExists, physicalPath)
	}

	if err := h.vault.Write(physicalPath, data); err != nil {
		return nil, err
	}

	err := h.cat.RegisterObject(ctx, sess, p, physicalPath, db.RegisterOptions{Size: int64(len(data))})
	if err != nil {
		// Keep the vault free of payloads nothing points at.
		_ = h.vault.Remove(physicalPath)
		return nil, fmt.Errorf("failed to register %s: %w", p, err)
	}

	h.logger.Debug().Str("logical_path", p.String()).Str("physical_path", physicalPath).Msg("Put data object")
	return h.cat.GetObject(ctx, p)
}

// Rename moves src to dst, relocating the payload to dst's vault path,
// then fires the rename-post hook.
func (h *Host) Rename(ctx context.Context, sess *catalog.Session, src, dst catalog.LogicalPath) error {
	obj, err := h.cat.GetObject(ctx, src)
	if err != nil {
		return err
	}

	newPhysical := h.vault.PathFor(dst)
	if newPhysical != obj.PhysicalPath && h.vault.Exists(newPhysical) {
		return fmt.Errorf("%w: %s", ErrPayloadExists, newPhysical)
	}

	if err := h.vault.Move(obj.PhysicalPath, newPhysical); err != nil {
		return err
	}
	if err := h.cat.RenameObject(ctx, sess, src, dst, newPhysical); err != nil {
		if undo := h.vault.Move(newPhysical, obj.PhysicalPath); undo != nil {
			h.logger.Error().Err(undo).Str("physical_path", newPhysical).Msg("Could not move payload back after failed rename")
		}
		return err
	}

	h.logger.Debug().
		Str("source", src.String()).
		Str("destination", dst.String()).
		Str("physical_path", newPhysical).
		Msg("Renamed data object")

	input := &plugin.DataObjCopyInput{
		Src:  plugin.DataObjInput{ObjPath: src.String()},
		Dest: plugin.DataObjInput{ObjPath: dst.String()},
	}
	_, err = h.plugin.ExecRule(ctx, plugin.EventRenamePost, input, plugin.SessionCallback{Sess: sess})
	return err
}

// DeleteResult describes what a deletion did.
type DeleteResult struct {
	// Skipped is true when a pre hook suppressed the default deletion.
	Skipped bool
	// PhysicalPath is the payload location the record pointed at.
	PhysicalPath string
	// PayloadRemoved is true when the payload was destroyed.
	PayloadRemoved bool
}

// Unlink deletes p and its payload unless the unlink-pre hook skips it.
func (h *Host) Unlink(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath) (*DeleteResult, error) {
	return h.remove(ctx, sess, p, plugin.EventUnlinkPre, "")
}

// Trim removes p's replica. With a single replica per data object this
// removes the record and payload, bracketed by the trim hooks.
func (h *Host) Trim(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath) (*DeleteResult, error) {
	return h.remove(ctx, sess, p, plugin.EventTrimPre, plugin.EventTrimPost)
}

func (h *Host) remove(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath, pre, post string) (*DeleteResult, error) {
	obj, err := h.cat.GetObject(ctx, p)
	if err != nil {
		return nil, err
	}
	result := &DeleteResult{PhysicalPath: obj.PhysicalPath}
	cb := plugin.SessionCallback{Sess: sess}
	input := &plugin.DataObjInput{ObjPath: p.String()}

	code, err := h.plugin.ExecRule(ctx, pre, input, cb)
	if err != nil {
		return nil, err
	}

	if code == plugin.CodeSkipOperation {
		result.Skipped = true
		h.logger.Debug().Str("logical_path", p.String()).Str("event", pre).Msg("Default deletion skipped")
	} else {
		// The pre hook may have changed the record; read it again.
		obj, err = h.cat.GetObject(ctx, p)
		if err != nil {
			return nil, err
		}
		result.PhysicalPath = obj.PhysicalPath

		if err := h.cat.UnregisterObject(ctx, sess, p); err != nil {
			return nil, err
		}
		if err := h.vault.Remove(obj.PhysicalPath); err != nil {
			return nil, err
		}
		result.PayloadRemoved = true
		h.logger.Debug().Str("logical_path", p.String()).Str("physical_path", obj.PhysicalPath).Msg("Removed data object")
	}

	if post != "" {
		if _, err := h.plugin.ExecRule(ctx, post, input, cb); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ExecRuleText forwards rule text to the plugin's direct invocation surface.
func (h *Host) ExecRuleText(ctx context.Context, sess *catalog.Session, text string) (plugin.Code, error) {
	return h.plugin.ExecRuleText(ctx, text, plugin.SessionCallback{Sess: sess})
}

// ObjectInfo is a data object with its hard-link group.
type ObjectInfo struct {
	Path         catalog.LogicalPath   `json:"path"`
	PhysicalPath string                `json:"physical_path"`
	ResourceID   string                `json:"resource_id"`
	Size         int64                 `json:"size"`
	GroupID      string                `json:"group_id,omitempty"`
	Siblings     []catalog.LogicalPath `json:"siblings"`
	PayloadRefs  int                   `json:"payload_refs"`
	PayloadFound bool                  `json:"payload_found"`
}

// Stat describes p and its group.
func (h *Host) Stat(ctx context.Context, p catalog.LogicalPath) (*ObjectInfo, error) {
	obj, err := h.cat.GetObject(ctx, p)
	if err != nil {
		return nil, err
	}

	group, _, err := h.engine.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	siblings, err := h.engine.SiblingsOf(ctx, p)
	if err != nil {
		return nil, err
	}
	if siblings == nil {
		siblings = []catalog.LogicalPath{}
	}
	refs, err := h.cat.CountPhysicalPathRefs(ctx, obj.PhysicalPath)
	if err != nil {
		return nil, err
	}

	return &ObjectInfo{
		Path:         obj.Path,
		PhysicalPath: obj.PhysicalPath,
		ResourceID:   obj.ResourceID,
		Size:         obj.Size,
		GroupID:      group.String(),
		Siblings:     siblings,
		PayloadRefs:  refs,
		PayloadFound: h.vault.Exists(obj.PhysicalPath),
	}, nil
}
