package importer

// TimelineFrame is one entry of Timeline.
type TimelineFrame struct {
	Index    int     `json:"index"`
	Frames   int     `json:"frames"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
	Missing  bool    `json:"missing,omitempty"`
}

// TimelineAnimation is one action of Timeline.
type TimelineAnimation struct {
	Name     string          `json:"name"`
	Sheet    string          `json:"sheet,omitempty"`
	Duration float64         `json:"duration"`
	Frames   []TimelineFrame `json:"frames"`
}

// Timeline is the JSON-friendly view of a Resource.
type Timeline struct {
	FPS        int                 `json:"fps"`
	Pass       string              `json:"pass"`
	Camera     int                 `json:"camera"`
	Animations []TimelineAnimation `json:"animations"`
}

// Timeline flattens the resource for printing.
func (r *Resource) Timeline() Timeline {
	t := Timeline{FPS: r.FPS, Pass: r.Pass, Camera: r.Camera}
	for i := range r.Animations {
		a := &r.Animations[i]
		ta := TimelineAnimation{Name: a.Name, Sheet: a.Sheet, Duration: a.Duration(), Frames: make([]TimelineFrame, len(a.Frames))}
		for j, f := range a.Frames {
			ta.Frames[j] = TimelineFrame{
				Index:    f.Index,
				Frames:   f.Frames,
				X:        f.Region.Min.X,
				Y:        f.Region.Min.Y,
				Width:    f.Region.Dx(),
				Height:   f.Region.Dy(),
				Duration: f.Duration,
				Missing:  f.Image == nil,
			}
		}
		t.Animations = append(t.Animations, ta)
	}
	return t
}
