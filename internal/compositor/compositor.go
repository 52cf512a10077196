// Package compositor scopes temporary render-pass configuration. A renderer
// that needs per-export pass setup implements Configurator; With guarantees
// the setup is undone on every exit path.
package compositor

import (
	"errors"
	"fmt"
)

// Configurator enables the given passes and returns a func that restores
// the configuration that was active before.
type Configurator interface {
	Inject(passes []string) (restore func() error, err error)
}

// Nop is a Configurator for renderers without pass state.
type Nop struct{}

func (Nop) Inject([]string) (func() error, error) {
	return func() error { return nil }, nil
}

// With injects passes, runs fn and restores. Restore runs even when fn
// returns an error or panics; a restore error is joined with fn's error.
func With(c Configurator, passes []string, fn func() error) (err error) {
	if c == nil {
		c = Nop{}
	}
	restore, err := c.Inject(passes)
	if err != nil {
		return fmt.Errorf("compositor: inject %v: %w", passes, err)
	}
	defer func() {
		if rerr := restore(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("compositor: restore: %w", rerr))
		}
	}()
	return fn()
}
