package controller

import (
	"context"
	"fmt"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// mutation is a registry change backed by a store write.
type mutation struct {
	op      string
	check   func() error                // loop
	persist func(context.Context) error // caller goroutine
	apply   func() error                // loop, re-validates
	undo    func(context.Context) error // caller goroutine, after apply failed
}

func (c *Controller) mutate(ctx context.Context, m mutation) error {
	if err := c.loop.Call(ctx, m.check); err != nil {
		return err
	}
	if m.persist != nil {
		if err := m.persist(ctx); err != nil {
			return err
		}
	}
	err := c.loop.Call(ctx, m.apply)
	if err == nil {
		return nil
	}
	c.logger.Warn("Registry changed during request", "op", m.op, "error", err)
	if m.undo != nil {
		if uerr := m.undo(context.WithoutCancel(ctx)); uerr != nil {
			c.logger.Error("Store write not undone", "op", m.op, "error", uerr)
		}
	}
	return fmt.Errorf("%s: %w: %w", m.op, errors.ErrConflict, err)
}

// onLoop runs a registry-only change.
func (c *Controller) onLoop(ctx context.Context, fn func() error) error {
	return c.loop.Call(ctx, fn)
}

func notFound(what string, key any) error {
	return fmt.Errorf("%s %v: %w", what, key, errors.ErrNotFound)
}
