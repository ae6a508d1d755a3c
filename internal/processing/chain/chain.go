// Package chain sequences mask stages, closing intermediates as it goes.
package chain

import (
	"context"
	"fmt"
	"strings"

	"precipitate-meter/internal/models"
	"precipitate-meter/internal/opencv/safe"
)

// Stage transforms one binary mask into a new one. Apply must not close its
// input.
type Stage interface {
	Name() string
	Enabled(params models.Snapshot) bool
	Apply(ctx context.Context, input *safe.Mat, params models.Snapshot) (*safe.Mat, error)
}

type Chain struct {
	stages []Stage
}

func New(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Run applies the enabled stages in order. The input is never closed and is
// never returned: with no stage enabled Run yields a clone tagged like a stage
// output, so the caller always owns exactly one new Mat on success.
func (c *Chain) Run(ctx context.Context, input *safe.Mat, params models.Snapshot) (*safe.Mat, error) {
	current := input
	drop := func() {
		if current != input {
			current.Close()
		}
	}

	for _, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			drop()
			return nil, err
		}
		if !stage.Enabled(params) {
			continue
		}

		next, err := stage.Apply(ctx, current, params)
		if err != nil {
			drop()
			return nil, fmt.Errorf("%s: %w", stage.Name(), err)
		}
		drop()
		current = next
	}

	if current == input {
		return input.CloneWithTag(input.Tag() + "_" + c.String())
	}
	return current, nil
}

// String joins the stage names, e.g. "erosion>border_clear".
func (c *Chain) String() string {
	names := make([]string, len(c.stages))
	for i, stage := range c.stages {
		names[i] = stage.Name()
	}
	return strings.Join(names, ">")
}
