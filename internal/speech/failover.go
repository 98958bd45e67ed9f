package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// ErrNoSynthesizer is returned when every tier in the chain failed.
var ErrNoSynthesizer = errors.New("no synthesizer available")

// FailoverChain is a Synthesizer that prefers the earliest healthy tier.
// When a tier fails the chain advances and sticks to the tier that
// succeeded; the preferred tiers are re-probed on the next failure, so a
// recovered primary wins back traffic without a restart.
type FailoverChain struct {
	tiers  []Synthesizer
	active atomic.Int32
}

func NewFailoverChain(tiers ...Synthesizer) *FailoverChain {
	return &FailoverChain{tiers: tiers}
}

func (c *FailoverChain) Name() string {
	names := make([]string, 0, len(c.tiers))
	for _, t := range c.tiers {
		names = append(names, t.Name())
	}
	return "failover(" + strings.Join(names, ",") + ")"
}

// Synthesize implements Synthesizer.
func (c *FailoverChain) Synthesize(ctx context.Context, text string) (Audio, error) {
	if len(c.tiers) == 0 {
		return Audio{}, ErrNoSynthesizer
	}

	start := int(c.active.Load())
	if start < 0 || start >= len(c.tiers) {
		start = 0
	}

	audio, err := c.tiers[start].Synthesize(ctx, text)
	if err == nil {
		return audio, nil
	}
	errs := []error{fmt.Errorf("%s: %w", c.tiers[start].Name(), err)}

	// The sticky tier failed: walk the whole chain from the top so a
	// recovered primary is retried before deeper fallbacks.
	for i, tier := range c.tiers {
		if i == start {
			continue
		}
		if ctx.Err() != nil {
			return Audio{}, ctx.Err()
		}
		audio, err := tier.Synthesize(ctx, text)
		if err == nil {
			c.active.Store(int32(i))
			return audio, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
	}
	return Audio{}, fmt.Errorf("%w: %v", ErrNoSynthesizer, errors.Join(errs...))
}

// ActiveTier reports which tier currently serves synthesis requests.
func (c *FailoverChain) ActiveTier() string {
	i := int(c.active.Load())
	if i < 0 || i >= len(c.tiers) {
		return ""
	}
	return c.tiers[i].Name()
}

// ClientSynth is the terminal tier: it never fails and tells the client to
// use its own built-in synthesizer for the text.
type ClientSynth struct{}

func (ClientSynth) Name() string { return "client" }

func (ClientSynth) Synthesize(_ context.Context, _ string) (Audio, error) {
	return Audio{Format: FormatClientSynth}, nil
}
