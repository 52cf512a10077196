package export

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"spriterig/internal/imageio"
	"spriterig/internal/sheet"
)

// sheetJob packs and encodes one (action, camera, pass) sheet.
type sheetJob struct {
	Action string
	Camera int
	Pass   string
	Path   string
	Images []*image.NRGBA
	FrameW int
	FrameH int
	Sheet  sheet.Options
	Format imageio.Format
}

// encodeSheets runs jobs on a bounded worker pool. Packing and encoding
// touch no renderer state, so they run in parallel. The returned slice has
// one error (or nil) per job.
func encodeSheets(ctx context.Context, jobs []sheetJob, workers int, log logrus.FieldLogger) []error {
	total := len(jobs)
	results := make([]error, total)
	if total == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}
	var processed atomic.Int64
	start := time.Now()

	jobChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				if err := ctx.Err(); err != nil {
					results[idx] = err
					continue
				}
				results[idx] = writeSheet(jobs[idx])
				processed.Add(1)
			}
		}()
	}

	// Send work
	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()

	p := processed.Load()
	elapsed := time.Since(start).Seconds()
	log.WithFields(logrus.Fields{
		"sheets":  p,
		"workers": workers,
	}).Debugf("sheets encoded, %.1f sheets/sec", float64(p)/max(elapsed, 1e-9))
	return results
}

func writeSheet(j sheetJob) error {
	img, _, err := sheet.Pack(j.Images, j.FrameW, j.FrameH, j.Sheet)
	if err != nil {
		return fmt.Errorf("export: pack %s camera %d pass %s: %w", j.Action, j.Camera, j.Pass, err)
	}
	if img == nil {
		return nil
	}
	if err := imageio.Save(j.Path, img, j.Format); err != nil {
		return fmt.Errorf("export: write %s: %w", j.Path, err)
	}
	return nil
}
