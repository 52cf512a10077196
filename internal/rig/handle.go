package rig

import (
	"errors"
	"fmt"
)

// Host owns the scene's cameras. Temporary rig cameras are cloned from the
// reference into the host for the duration of one camera pass.
type Host interface {
	// CloneCamera adds a copy of the named camera posed at t and returns its name.
	CloneCamera(reference string, t Transform) (string, error)
	RemoveCamera(name string) error
	ActiveCamera() string
	SetActiveCamera(name string) error
}

// Acquire clones reference at t, makes the clone the active camera and
// returns a release func that restores the previous active camera and
// removes the clone. release must be called on every exit path.
func Acquire(h Host, reference string, t Transform) (name string, release func() error, err error) {
	prev := h.ActiveCamera()
	name, err = h.CloneCamera(reference, t)
	if err != nil {
		return "", nil, fmt.Errorf("rig: clone %q: %w", reference, err)
	}
	if err := h.SetActiveCamera(name); err != nil {
		rmErr := h.RemoveCamera(name)
		return "", nil, errors.Join(fmt.Errorf("rig: activate %q: %w", name, err), rmErr)
	}

	released := false
	release = func() error {
		if released {
			return nil
		}
		released = true
		var errs []error
		if err := h.SetActiveCamera(prev); err != nil {
			errs = append(errs, fmt.Errorf("rig: restore active camera %q: %w", prev, err))
		}
		if err := h.RemoveCamera(name); err != nil {
			errs = append(errs, fmt.Errorf("rig: remove %q: %w", name, err))
		}
		return errors.Join(errs...)
	}
	return name, release, nil
}
