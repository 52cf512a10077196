// Package compress run-length encodes a sampled frame sequence: consecutive
// frames with equal content keys collapse into one stored sprite that is
// held for the length of the run.
package compress

import (
	"fmt"

	"spriterig/internal/metadata"
	"spriterig/internal/sampler"
	"spriterig/internal/sheet"
)

// Run is a span of consecutive original frames represented by the image of
// its first frame. Start is the 0-based offset within the action.
type Run struct {
	Start  int
	Length int
}

// Timing describes the sampling and output frame rates. When SourceFPS is
// positive and differs from OutputFPS every run gets an explicit duration.
type Timing struct {
	SourceFPS float64
	OutputFPS int
}

func (t Timing) mismatched() bool {
	return t.SourceFPS > 0 && t.OutputFPS > 0 && t.SourceFPS != float64(t.OutputFPS)
}

// Result is the compressed sequence.
type Result struct {
	Runs []Run
	// Overrides maps a run's start offset to the exact seconds the whole
	// run is displayed. Nil when no override is needed.
	Overrides map[int]float64
}

// TotalFrames is the number of original frames the runs cover.
func (r Result) TotalFrames() int {
	n := 0
	for _, run := range r.Runs {
		n += run.Length
	}
	return n
}

// Compress scans keys once. A new run starts whenever a key differs from
// the immediately preceding key, so A,A,B,A,A,A yields runs of 2, 1 and 3.
// With skipDuplicates false every frame is its own run.
func Compress(keys []sampler.Key, skipDuplicates bool, timing Timing) Result {
	var res Result
	if len(keys) == 0 {
		return res
	}

	res.Runs = make([]Run, 0, len(keys))
	res.Runs = append(res.Runs, Run{Start: 0, Length: 1})
	for i := 1; i < len(keys); i++ {
		if skipDuplicates && keys[i] == keys[i-1] {
			res.Runs[len(res.Runs)-1].Length++
			continue
		}
		res.Runs = append(res.Runs, Run{Start: i, Length: 1})
	}

	if timing.mismatched() {
		res.Overrides = make(map[int]float64, len(res.Runs))
		for _, run := range res.Runs {
			res.Overrides[run.Start] = float64(run.Length) / timing.SourceFPS
		}
	}
	return res
}

// Keys extracts the content keys of frames in order.
func Keys(frames []sampler.Frame) []sampler.Key {
	out := make([]sampler.Key, len(frames))
	for i, f := range frames {
		out[i] = f.Key
	}
	return out
}

// CombineStreams merges per-camera key sequences of equal length into one
// key per frame index, so a frame only counts as a duplicate when it is a
// duplicate from every camera.
func CombineStreams(streams [][]sampler.Key) ([]sampler.Key, error) {
	if len(streams) == 0 {
		return nil, nil
	}
	n := len(streams[0])
	for c, s := range streams {
		if len(s) != n {
			return nil, fmt.Errorf("compress: camera %d has %d frames, camera 0 has %d", c, len(s), n)
		}
	}
	out := make([]sampler.Key, n)
	col := make([]sampler.Key, len(streams))
	for i := 0; i < n; i++ {
		for c, s := range streams {
			col[c] = s[i]
		}
		out[i] = sampler.CombineKeys(col...)
	}
	return out, nil
}

// Entries places run i at cell i of layout and returns the sprite list.
func Entries(runs []Run, layout sheet.Layout) []metadata.Sprite {
	out := make([]metadata.Sprite, len(runs))
	for i, run := range runs {
		p := layout.Offset(i)
		out[i] = metadata.Sprite{X: p.X, Y: p.Y, Frames: run.Length}
	}
	return out
}

// Representatives returns the index of each run's first frame.
func Representatives(runs []Run) []int {
	out := make([]int, len(runs))
	for i, run := range runs {
		out[i] = run.Start
	}
	return out
}
