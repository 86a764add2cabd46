// Package passes implements pattern-driven rewrite passes on top of the
// model transformer, plus the manager that runs an ordered pipeline of them.
// A pass never mutates its input model: it traverses it read-only and emits
// a rewritten model through a fresh Transformer, re-mapping all references.
package passes

import (
	"context"
	"fmt"

	"github.com/embedml/remodel/internal/config"
	"github.com/embedml/remodel/internal/ctxlog"
	"github.com/embedml/remodel/internal/model"
)

// Pass is one named rewrite stage over a whole model.
type Pass interface {
	Name() string
	Run(ctx context.Context, m *model.Model, tctx *model.TransformContext) (*model.Model, error)
}

// Manager applies an ordered sequence of passes, each pass's output becoming
// the next pass's input. The list is explicit and caller-constructed; there
// is no process-wide pass registration.
type Manager struct {
	passes []Pass
}

// NewManager creates a manager over the given passes, applied in order.
func NewManager(passes ...Pass) *Manager {
	return &Manager{passes: passes}
}

// Append adds a pass to the end of the pipeline.
func (pm *Manager) Append(p Pass) {
	pm.passes = append(pm.passes, p)
}

// Run applies the pipeline to the model and returns the rewritten model.
func (pm *Manager) Run(ctx context.Context, m *model.Model, tctx *model.TransformContext) (*model.Model, error) {
	logger := ctxlog.FromContext(ctx)
	for _, p := range pm.passes {
		before := m.Len()
		next, err := p.Run(ctx, m, tctx)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", p.Name(), err)
		}
		logger.Debug("pass applied", "pass", p.Name(), "nodes_before", before, "nodes_after", next.Len())
		m = next
	}
	return m, nil
}

// Standard builds the stock optimization pipeline for a target: affine
// fusion followed by convolution-method selection. Order matters; later
// passes observe only the rewritten form produced by earlier ones.
func Standard(target *config.Target) *Manager {
	return NewManager(
		NewFuseAffine(),
		NewSelectConvMethod(target),
	)
}
