package export

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ManifestAction summarizes one exported action.
type ManifestAction struct {
	Name    string `json:"name"`
	Frames  int    `json:"frames"`
	Sprites int    `json:"sprites"`
}

// ManifestEntry represents one object in the output manifest.
type ManifestEntry struct {
	Object    string           `json:"object"`
	OutputDir string           `json:"output_dir"`
	Metadata  string           `json:"metadata,omitempty"`
	Actions   []ManifestAction `json:"actions,omitempty"`
	Sheets    []string         `json:"sheets,omitempty"` // relative to OutputDir
	Failed    int              `json:"failed_frames,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Manifest lists everything one export-all run produced.
type Manifest struct {
	RunID   string          `json:"run_id"`
	Objects []ManifestEntry `json:"objects"`
}

func manifestEntry(r *Result) ManifestEntry {
	e := ManifestEntry{
		Object:    r.Object,
		OutputDir: r.OutputDir,
		Metadata:  r.MetadataPath,
		Failed:    r.FailedFrames,
	}
	for _, a := range r.Metadata.Actions {
		e.Actions = append(e.Actions, ManifestAction{Name: a.Name, Frames: a.FrameCount(), Sprites: len(a.Sprites)})
	}
	for _, s := range r.Sheets {
		rel, err := filepath.Rel(r.OutputDir, s.Path)
		if err != nil {
			rel = s.Path
		}
		e.Sheets = append(e.Sheets, filepath.ToSlash(rel))
	}
	return e
}

// WriteManifest writes the manifest as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
