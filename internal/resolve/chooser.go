package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
)

// Choice is the decision-maker's answer. A nil Candidate means skip this
// book; Stop asks to end the whole run.
type Choice struct {
	Candidate *book.Candidate
	Stop      bool
}

// Chooser picks one of several candidates for a query. Implementations must
// not reorder or modify the candidates; a selection refers to a position in
// the slice as given. Choose blocks until a decision is made or ctx ends.
type Chooser interface {
	Choose(ctx context.Context, q book.Query, candidates []book.Candidate) (Choice, error)
}

// ChooserFunc adapts a function to the Chooser interface.
type ChooserFunc func(ctx context.Context, q book.Query, candidates []book.Candidate) (Choice, error)

// Choose calls f.
func (f ChooserFunc) Choose(ctx context.Context, q book.Query, candidates []book.Candidate) (Choice, error) {
	return f(ctx, q, candidates)
}

// FirstChoice accepts the first candidate without asking.
type FirstChoice struct{}

// Choose returns the first candidate.
func (FirstChoice) Choose(_ context.Context, _ book.Query, candidates []book.Candidate) (Choice, error) {
	if len(candidates) == 0 {
		return Choice{}, nil
	}
	c := candidates[0]
	return Choice{Candidate: &c}, nil
}

// SkipChoice never accepts a fallback candidate. Only primary hits are kept.
type SkipChoice struct{}

// Choose always skips.
func (SkipChoice) Choose(context.Context, book.Query, []book.Candidate) (Choice, error) {
	return Choice{}, nil
}

// Policy names accepted by NewPolicyChooser.
const (
	PolicyPrompt = "prompt"
	PolicyFirst  = "first"
	PolicySkip   = "skip"
)

// NewPolicyChooser returns the non-interactive chooser for a policy name.
// The prompt policy needs a terminal and is built by the caller.
func NewPolicyChooser(policy string) (Chooser, error) {
	switch strings.ToLower(policy) {
	case PolicyFirst:
		return FirstChoice{}, nil
	case PolicySkip:
		return SkipChoice{}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want %s, %s or %s)", policy, PolicyPrompt, PolicyFirst, PolicySkip)
	}
}
