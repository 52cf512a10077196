// Package metadata reads and writes metadata.json, the description of every
// sprite sheet produced for one exported object, and expands its run-length
// sprite lists back into per-frame timelines.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileName is the metadata file written at the root of an object's output.
const FileName = "metadata.json"

// ErrMalformedMetadata is returned for unparsable JSON, a missing required
// field, or sprite runs that disagree with a known clip length.
var ErrMalformedMetadata = errors.New("metadata: malformed metadata")

// Dimensions is the size of one frame cell in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Sprite is one stored frame image held for Frames consecutive frames.
// X and Y are the cell's top-left pixel inside the sheet.
type Sprite struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Frames int `json:"frames"`
}

// Action is one exported clip.
type Action struct {
	Name    string   `json:"name"`
	Sprites []Sprite `json:"sprites"`
	// Overrides maps the 0-based frame index a sprite run starts at to the
	// seconds the whole run is held.
	Overrides map[int]float64 `json:"frameDurationOverridesInSeconds,omitempty"`
}

// FrameCount is the number of original frames the action covers.
func (a Action) FrameCount() int {
	n := 0
	for _, s := range a.Sprites {
		n += s.Frames
	}
	return n
}

// Metadata is the root of metadata.json.
type Metadata struct {
	FPS             int        `json:"fps"`
	FrameDimensions Dimensions `json:"frameDimensions"`
	Passes          []string   `json:"passes"`
	Actions         []Action   `json:"actions"`
}

// Action returns the action with the given name.
func (m *Metadata) Action(name string) (Action, bool) {
	for _, a := range m.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// Marshal encodes m with two-space indentation and a trailing newline.
func Marshal(m Metadata) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("metadata: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// Write encodes m and replaces path atomically: the bytes go to a temporary
// file in the same directory which is renamed over path only after a
// successful sync. An encode failure leaves no file behind.
func Write(path string, m Metadata) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("metadata: mkdir %s: %w", dir, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("metadata: create %s: %w", tmp, err)
	}

	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("metadata: write %s: %w", path, err)
	}
	return nil
}

// Read loads and parses path.
func Read(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return Metadata{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// wire mirrors Metadata with pointer fields so absent keys are detectable.
type wire struct {
	FPS             *int        `json:"fps"`
	FrameDimensions *Dimensions `json:"frameDimensions"`
	Passes          *[]string   `json:"passes"`
	Actions         *[]Action   `json:"actions"`
}

// Parse decodes metadata JSON. Every top-level field is required.
func Parse(data []byte) (Metadata, error) {
	var w wire
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}

	var missing []string
	if w.FPS == nil {
		missing = append(missing, "fps")
	}
	if w.FrameDimensions == nil {
		missing = append(missing, "frameDimensions")
	}
	if w.Passes == nil {
		missing = append(missing, "passes")
	}
	if w.Actions == nil {
		missing = append(missing, "actions")
	}
	if len(missing) > 0 {
		return Metadata{}, fmt.Errorf("%w: missing %q", ErrMalformedMetadata, missing)
	}

	m := Metadata{
		FPS:             *w.FPS,
		FrameDimensions: *w.FrameDimensions,
		Passes:          *w.Passes,
		Actions:         *w.Actions,
	}
	if m.FPS <= 0 {
		return Metadata{}, fmt.Errorf("%w: fps %d", ErrMalformedMetadata, m.FPS)
	}
	for _, a := range m.Actions {
		for i, s := range a.Sprites {
			if s.Frames < 1 {
				return Metadata{}, fmt.Errorf("%w: action %q sprite %d has %d frames",
					ErrMalformedMetadata, a.Name, i, s.Frames)
			}
		}
	}
	return m, nil
}

// Validate checks the sprite runs of a against an independently known clip
// length. The check is advisory; the metadata stays usable when it fails.
func Validate(a Action, clipLength int) error {
	if n := a.FrameCount(); n != clipLength {
		return fmt.Errorf("%w: action %q sprites cover %d frames, clip has %d",
			ErrMalformedMetadata, a.Name, n, clipLength)
	}
	return nil
}
