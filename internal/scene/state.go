package scene

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"spriterig/internal/anim"
	"spriterig/internal/rig"
)

// Scene is a loaded scene plus its mutable playback state. It is safe for
// concurrent use.
type Scene struct {
	mu      sync.RWMutex
	fps     int
	objects []Object
	actions []Action
	cameras []Camera

	active  string            // active camera name
	frame   int               // current frame
	playing map[string]string // object name -> action name
}

// New builds a Scene from a decoded file, filling defaults and validating
// names.
func New(f File) (*Scene, error) {
	f.setDefaults()
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &Scene{
		fps:     f.FPS,
		objects: f.Objects,
		actions: f.Actions,
		cameras: f.Cameras,
		active:  f.ActiveCamera,
		frame:   f.FrameCurrent,
		playing: make(map[string]string),
	}, nil
}

// FPS is the scene frame rate.
func (s *Scene) FPS() int {
	return s.fps
}

// Object looks up an object by name.
func (s *Scene) Object(name string) (Object, error) {
	for _, o := range s.objects {
		if o.Name == name {
			return o, nil
		}
	}
	return Object{}, fmt.Errorf("%w: object %q", ErrNotFound, name)
}

// Objects returns all objects in file order.
func (s *Scene) Objects() []Object {
	return append([]Object(nil), s.objects...)
}

// Action looks up an action by name.
func (s *Scene) Action(name string) (Action, error) {
	for _, a := range s.actions {
		if a.Name == name {
			return a, nil
		}
	}
	return Action{}, fmt.Errorf("%w: action %q", ErrNotFound, name)
}

// Actions returns all actions in file order.
func (s *Scene) Actions() []Action {
	return append([]Action(nil), s.actions...)
}

// Camera looks up a camera by name, including temporary rig cameras.
func (s *Scene) Camera(name string) (Camera, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.cameraIndex(name)
	if i < 0 {
		return Camera{}, fmt.Errorf("%w: camera %q", ErrNotFound, name)
	}
	return s.cameras[i], nil
}

func (s *Scene) cameraIndex(name string) int {
	for i, c := range s.cameras {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// CameraCount is the number of registered cameras.
func (s *Scene) CameraCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cameras)
}

// CloneCamera registers a copy of reference posed at t. The clone keeps
// every lens setting of the reference.
func (s *Scene) CloneCamera(reference string, t rig.Transform) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.cameraIndex(reference)
	if i < 0 {
		return "", fmt.Errorf("%w: camera %q", ErrNotFound, reference)
	}
	clone := s.cameras[i]
	clone.Name = reference + ".rig." + uuid.NewString()[:8]
	pose := t
	clone.pose = &pose
	s.cameras = append(s.cameras, clone)
	return clone.Name, nil
}

// RemoveCamera unregisters a camera.
func (s *Scene) RemoveCamera(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.cameraIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: camera %q", ErrNotFound, name)
	}
	s.cameras = append(s.cameras[:i], s.cameras[i+1:]...)
	return nil
}

// ActiveCamera returns the name of the camera renders look through.
func (s *Scene) ActiveCamera() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActiveCamera changes the render camera. The empty name clears it.
func (s *Scene) SetActiveCamera(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" && s.cameraIndex(name) < 0 {
		return fmt.Errorf("%w: camera %q", ErrNotFound, name)
	}
	s.active = name
	return nil
}

// Frame returns the current frame.
func (s *Scene) Frame() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// SetFrame moves the playhead.
func (s *Scene) SetFrame(f int) {
	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
}

// PlayingAction returns the action assigned to object, or "" for its rest pose.
func (s *Scene) PlayingAction(object string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playing[object]
}

// SetAction assigns action to object. The empty name restores the rest pose.
func (s *Scene) SetAction(object, action string) error {
	if _, err := s.Object(object); err != nil {
		return err
	}
	if action != "" {
		if _, err := s.Action(action); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if action == "" {
		delete(s.playing, object)
	} else {
		s.playing[object] = action
	}
	return nil
}

// State is a snapshot of everything an export changes.
type State struct {
	Active  string
	Frame   int
	Playing map[string]string
}

// Snapshot captures the current state.
func (s *Scene) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playing := make(map[string]string, len(s.playing))
	for k, v := range s.playing {
		playing[k] = v
	}
	return State{Active: s.active, Frame: s.frame, Playing: playing}
}

// Restore puts back a snapshot.
func (s *Scene) Restore(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = st.Active
	s.frame = st.Frame
	s.playing = make(map[string]string, len(st.Playing))
	for k, v := range st.Playing {
		s.playing[k] = v
	}
}

// Pose evaluates object at the current frame under its assigned action.
func (s *Scene) Pose(object string) (anim.Pose, error) {
	o, err := s.Object(object)
	if err != nil {
		return anim.Pose{}, err
	}
	var keys []anim.Keyframe
	if name := s.PlayingAction(object); name != "" {
		a, err := s.Action(name)
		if err != nil {
			return anim.Pose{}, err
		}
		keys = a.Keyframes
	}
	return anim.Evaluate(o.Transform, keys, float64(s.Frame())), nil
}
