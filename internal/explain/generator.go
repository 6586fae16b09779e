package explain

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Narrator produces free text for a prompt.
type Narrator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Explanation struct {
	Text      string
	Augmented bool
	// NarrativeErr is set when augmentation was attempted and failed; Text
	// then holds the deterministic baseline.
	NarrativeErr error
}

type Generator struct {
	narrator Narrator
	logger   zerolog.Logger
}

// NewGenerator returns a generator; a nil narrator keeps it deterministic.
func NewGenerator(narrator Narrator, logger zerolog.Logger) *Generator {
	return &Generator{
		narrator: narrator,
		logger:   logger.With().Str("component", "explain").Logger(),
	}
}

func (g *Generator) Explain(ctx context.Context, tc TickContext) Explanation {
	base := Baseline(tc)
	if g.narrator == nil || base == "" {
		return Explanation{Text: base}
	}

	narrative, err := g.narrator.Complete(ctx, BuildPrompt(tc, base))
	if err != nil {
		g.logger.Warn().Err(err).Str("kind", tc.Verdict.Kind.String()).Msg("narrative augmentation failed, using baseline")
		return Explanation{Text: base, NarrativeErr: err}
	}
	narrative = singleLine(narrative)
	if narrative == "" {
		return Explanation{Text: base}
	}
	return Explanation{Text: base + " " + narrative, Augmented: true}
}

// singleLine folds all whitespace runs into single spaces so an explanation
// always fits in one log record line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
