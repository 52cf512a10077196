package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"spriterig/internal/imageio"
)

// ErrTextureResolution is returned when no sheet file exists for an
// action. Import treats it as a warning.
var ErrTextureResolution = errors.New("importer: texture resolution failure")

// Candidates lists the sheet paths tried for (action, camera, pass), most
// specific first. ext includes the dot.
func Candidates(root, action string, camera int, pass, ext string) []string {
	file := pass + ext
	padded := filepath.Join(root, action, fmt.Sprintf("camera_%02d", camera), file)
	out := []string{padded}
	if bare := filepath.Join(root, action, fmt.Sprintf("camera_%d", camera), file); bare != padded {
		out = append(out, bare)
	}
	if camera != 0 {
		out = append(out,
			filepath.Join(root, action, "camera_00", file),
			filepath.Join(root, action, "camera_0", file),
		)
	}
	return append(out,
		filepath.Join(root, action, file),
		filepath.Join(root, file),
	)
}

// ResolveSheet returns the first existing candidate. An empty ext tries
// every known image format per candidate.
func ResolveSheet(root, action string, camera int, pass, ext string) (string, error) {
	exts := []string{ext}
	if ext == "" {
		exts = exts[:0]
		for _, f := range imageio.Formats {
			exts = append(exts, f.Ext())
		}
	}
	var tried []string
	for _, e := range exts {
		for _, p := range Candidates(root, action, camera, pass, e) {
			if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
				return p, nil
			}
			tried = append(tried, p)
		}
	}
	return "", fmt.Errorf("%w: action %q camera %d pass %q, tried %q",
		ErrTextureResolution, action, camera, pass, tried)
}
