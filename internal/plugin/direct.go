package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/hardlink"
	"github.com/tidwall/gjson"
)

const (
	inlineMarker = "@external rule {"
	scriptMarker = "@external"
)

// opArgs are the fields of a direct invocation document.
type opArgs struct {
	Operation   string
	LogicalPath string
	LinkName    string
	raw         gjson.Result
}

// ExecRuleText runs a direct invocation. The text is a JSON document,
// optionally wrapped as "@external rule { <json> }" (inline) or
// "@external <json>" (script file):
//
//	@external rule { {"operation": "hard_links_make_link", "logical_path": "/z/a", "link_name": "/z/b"} }
func (p *Plugin) ExecRuleText(ctx context.Context, text string, cb Callback) (Code, error) {
	const function = "exec_rule_text"
	sess := sessionOf(cb)

	p.logger.Debug().Str("rule_text", text).Msg("Executing rule text")
	payload := StripWrapper(text)
	p.logger.Debug().Str("rule_text", payload).Msg("Stripped rule text")

	args, err := parseArgs(payload)
	if err != nil {
		p.logError(function, err)
		p.metrics.DirectInvocation("", catalog.StatusOf(err).String())
		return CodeContinue, err
	}

	code, err := p.dispatch(ctx, args, sess)
	p.metrics.DirectInvocation(args.Operation, catalog.StatusOf(err).String())
	if err != nil {
		p.report(function, sess, err)
		return CodeContinue, err
	}
	return code, nil
}

// ExecRuleExpression is ExecRuleText for rule expressions.
func (p *Plugin) ExecRuleExpression(ctx context.Context, text string, cb Callback) (Code, error) {
	return p.ExecRuleText(ctx, text, cb)
}

func (p *Plugin) dispatch(ctx context.Context, args opArgs, sess *catalog.Session) (Code, error) {
	entry, ok := p.ops[args.Operation]
	if !ok {
		return CodeContinue, newError(catalog.StatusInvalidOperation, nil, "Invalid operation [%s]", args.Operation)
	}

	switch entry.kind {
	case kindNotSupported:
		return CodeContinue, newError(catalog.StatusNotSupported, hardlink.ErrNotYetSupported, "%s", args.Operation)
	case kindNoop:
		return CodeSuccess, nil
	}

	if sess == nil {
		return CodeContinue, typeError("%s: no session available from callback", args.Operation)
	}
	return entry.fn(ctx, args, sess)
}

// makeLink creates args.LinkName as a hard link of args.LogicalPath.
func (p *Plugin) makeLink(ctx context.Context, args opArgs, sess *catalog.Session) (Code, error) {
	if err := args.require("logical_path", "link_name"); err != nil {
		return CodeContinue, err
	}

	source, err := parsePath("logical", args.LogicalPath)
	if err != nil {
		return CodeContinue, err
	}
	link, err := parsePath("link", args.LinkName)
	if err != nil {
		return CodeContinue, err
	}

	if err := p.engine.CreateLink(ctx, sess, source, link); err != nil {
		var ce *hardlink.CatalogError
		if errors.As(err, &ce) {
			return CodeContinue, newError(ce.Status, err, "")
		}
		return CodeContinue, newError(catalog.StatusRuntime, err, "")
	}
	return CodeSuccess, nil
}

// StripWrapper removes the calling-convention wrapper around a rule's JSON
// payload. Text without a wrapper is returned unchanged.
func StripWrapper(text string) string {
	switch {
	case strings.Contains(text, inlineMarker):
		start := strings.IndexByte(text, '{') + 1
		end := strings.LastIndex(text, " }")
		if end < start {
			return text[start:]
		}
		return text[start:end]

	case strings.Contains(text, scriptMarker):
		start := strings.IndexByte(text, '{')
		end := strings.LastIndexByte(text, '}')
		if start < 0 || end < start {
			return text
		}
		return text[start : end+1]
	}
	return text
}

func parseArgs(payload string) (opArgs, error) {
	if !gjson.Valid(payload) {
		return opArgs{}, inputFormatError(fmt.Errorf("parse error: invalid JSON document"))
	}

	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return opArgs{}, typeError("rule document must be an object, got %s", doc.Type)
	}

	op := doc.Get("operation")
	if op.Type != gjson.String {
		return opArgs{}, typeError("field [operation] must be a string")
	}

	return opArgs{
		Operation:   op.String(),
		LogicalPath: doc.Get("logical_path").String(),
		LinkName:    doc.Get("link_name").String(),
		raw:         doc,
	}, nil
}

// require checks that each field is present and a string.
func (a opArgs) require(fields ...string) error {
	for _, f := range fields {
		if v := a.raw.Get(f); v.Type != gjson.String {
			return typeError("field [%s] must be a string", f)
		}
	}
	return nil
}
