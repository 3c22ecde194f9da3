package hardlink

import (
	"context"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/rs/zerolog"
)

// Action tells the host what to do with a pending deletion.
type Action int

const (
	// ActionContinue lets the default, payload-destroying deletion run.
	ActionContinue Action = iota
	// ActionSkip means the record was detached and the default deletion must not run.
	ActionSkip
)

func (a Action) String() string {
	if a == ActionSkip {
		return "skip"
	}
	return "continue"
}

// Verdict is the guard's decision for one deletion.
type Verdict struct {
	Action   Action
	Siblings []catalog.LogicalPath

	// DetachErr is set when siblings exist but the detach failed. The
	// action is then ActionContinue.
	DetachErr error
}

// Guard intercepts deletions of group members. Unlink and trim share it.
type Guard struct {
	resolver *Resolver
	mut      catalog.Mutator
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// Check decides the fate of a deletion of p.
//
// With siblings present, p's record and metadata are force-unregistered
// and the verdict is ActionSkip; the payload stays for the siblings.
// Otherwise the verdict is ActionContinue. Errors are returned only for
// sibling resolution.
func (g *Guard) Check(ctx context.Context, sess *catalog.Session, p catalog.LogicalPath) (Verdict, error) {
	siblings, err := g.resolver.SiblingsOf(ctx, p)
	if err != nil {
		return Verdict{Action: ActionContinue}, err
	}

	if len(siblings) == 0 {
		g.logger.Trace().Str("logical_path", p.String()).Msg("Removing data object ...")
		g.metrics.GuardVerdict(ActionContinue.String())
		return Verdict{Action: ActionContinue}, nil
	}

	g.logger.Trace().Str("logical_path", p.String()).Msgf("Removing hard-link [%s] ...", p)

	err = sess.Sudo(func() error {
		return g.mut.ForceUnregister(ctx, sess, p)
	})
	if err != nil {
		g.logger.Error().Err(err).Str("logical_path", p.String()).Msgf("Could not remove hard-link [%s]", p)
		g.metrics.GuardVerdict("detach_failed")
		return Verdict{
			Action:    ActionContinue,
			Siblings:  siblings,
			DetachErr: catalogErr("force unregister", p, err),
		}, nil
	}

	g.logger.Trace().Str("logical_path", p.String()).Msgf("Successfully removed hard-link [%s]. Skipping operation.", p)
	g.metrics.GuardVerdict(ActionSkip.String())
	return Verdict{Action: ActionSkip, Siblings: siblings}, nil
}
