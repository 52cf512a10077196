package metadata

import "image"

// Frame is one original frame of an expanded action.
type Frame struct {
	Index    int // 0-based frame offset within the action
	Sprite   int // index into Action.Sprites
	Region   image.Rectangle
	Duration float64 // seconds
}

// Run is one sprite with the total time it is held.
type Run struct {
	Start    int
	Frames   int
	Sprite   int
	Region   image.Rectangle
	Duration float64 // seconds for the whole run
}

func region(m Metadata, s Sprite) image.Rectangle {
	return image.Rect(s.X, s.Y, s.X+m.FrameDimensions.Width, s.Y+m.FrameDimensions.Height)
}

// Expand returns one entry per original frame. Every frame of a run points
// at the run's region. Frames last 1/fps seconds unless the run has an
// override, whose seconds are then shared evenly by the run's frames.
func Expand(m Metadata, a Action) []Frame {
	out := make([]Frame, 0, a.FrameCount())
	nominal := 1 / float64(m.FPS)
	start := 0
	for si, s := range a.Sprites {
		d := nominal
		if o, ok := a.Overrides[start]; ok {
			d = o / float64(s.Frames)
		}
		r := region(m, s)
		for i := 0; i < s.Frames; i++ {
			out = append(out, Frame{Index: start + i, Sprite: si, Region: r, Duration: d})
		}
		start += s.Frames
	}
	return out
}

// ExpandRuns returns one entry per sprite for consumers that play runs
// directly.
func ExpandRuns(m Metadata, a Action) []Run {
	out := make([]Run, 0, len(a.Sprites))
	start := 0
	for si, s := range a.Sprites {
		d := float64(s.Frames) / float64(m.FPS)
		if o, ok := a.Overrides[start]; ok {
			d = o
		}
		out = append(out, Run{Start: start, Frames: s.Frames, Sprite: si, Region: region(m, s), Duration: d})
		start += s.Frames
	}
	return out
}

// TotalDuration is the playback length of a in seconds.
func TotalDuration(m Metadata, a Action) float64 {
	var t float64
	for _, r := range ExpandRuns(m, a) {
		t += r.Duration
	}
	return t
}
