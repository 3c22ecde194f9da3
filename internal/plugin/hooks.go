package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/hardlink"
)

// ExecRule runs the hook handler registered for name with the host's
// operation input. An unknown name is logged and answered with
// CodeContinue so the host keeps its default flow.
//
// Handler errors are logged and appended to the session's error stack
// before being returned.
func (p *Plugin) ExecRule(ctx context.Context, name string, input any, cb Callback) (Code, error) {
	entry, ok := p.hooks[name]
	if !ok {
		p.logger.Error().Str("rule", name).Msgf("Rule not supported [%s]", name)
		return CodeContinue, nil
	}

	start := time.Now()
	sess := sessionOf(cb)

	var (
		req  Request
		code = CodeContinue
		err  error
	)
	switch {
	case entry.kind == kindNoop:
		// Input is ignored.
	case sess == nil:
		err = typeError("%s: no session available from callback", name)
	default:
		req, err = decodeRequest(name, input)
	}

	if err == nil && entry.kind == kindHandler {
		code, err = entry.fn(ctx, req, sess)
	}

	if err != nil {
		p.report(name, sess, err)
	}

	p.observe(name, req, code, err, time.Since(start))
	return code, err
}

func (p *Plugin) observe(name string, req Request, code Code, err error, d time.Duration) {
	outcome := outcomeOf(code, err)
	p.metrics.HookExecuted(name, outcome, d.Seconds())

	if p.onEvent == nil {
		return
	}
	ev := HookEvent{Event: name, Outcome: outcome, Duration: d, Time: time.Now().UTC()}
	if req != nil {
		ev.Path = Path(req)
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.onEvent(ev)
}

func outcomeOf(code Code, err error) string {
	if err != nil {
		return "error"
	}
	switch code {
	case CodeSkipOperation:
		return "skip"
	case CodeSuccess:
		return "success"
	}
	return "continue"
}

// renamePost propagates the destination's new physical path to its siblings.
func (p *Plugin) renamePost(ctx context.Context, req Request, sess *catalog.Session) (Code, error) {
	r, ok := req.(RenameRequest)
	if !ok {
		return CodeContinue, typeError("unexpected request %T for %s", req, EventRenamePost)
	}

	report, err := p.engine.Propagate(ctx, sess, r.Destination)
	if err != nil {
		return CodeContinue, newError(catalog.StatusRuntime, err, "rename propagation for %s", r.Destination)
	}

	for _, f := range report.Failed {
		sess.AddErrorMsg(catalog.StatusRuntime,
			fmt.Sprintf("Could not update physical path of [%s] to [%s]. %s", f.Path, report.PhysicalPath, hardlink.ModreplHint))
	}
	return CodeContinue, nil
}

// deletePre is shared by unlink and trim.
func (p *Plugin) deletePre(ctx context.Context, req Request, sess *catalog.Session) (Code, error) {
	var target catalog.LogicalPath
	switch r := req.(type) {
	case UnlinkRequest:
		target = r.Path
	case TrimRequest:
		target = r.Path
	default:
		return CodeContinue, typeError("unexpected request %T for deletion guard", req)
	}

	verdict, err := p.engine.Check(ctx, sess, target)
	if err != nil {
		return CodeContinue, newError(catalog.StatusRuntime, err, "deletion guard for %s", target)
	}

	if verdict.DetachErr != nil {
		// The default deletion proceeds; the caller still hears about it.
		p.report(req.Event(), sess, newError(catalog.StatusOf(verdict.DetachErr), verdict.DetachErr, "Hard-Link removal error"))
		return CodeContinue, nil
	}

	if verdict.Action == hardlink.ActionSkip {
		return CodeSkipOperation, nil
	}
	return CodeContinue, nil
}
