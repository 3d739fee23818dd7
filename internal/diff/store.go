package diff

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/scheduler"
)

// Store keeps reference images under
// <baselineDir>/<suite path...>/<state>/<browser>.png and writes current
// captures and diff images to the same layout under outputDir.
type Store struct {
	baselineDir string
	outputDir   string
}

// NewStore creates a filesystem baseline store
func NewStore(baselineDir, outputDir string) *Store {
	return &Store{baselineDir: baselineDir, outputDir: outputDir}
}

// BaselinePath returns where the reference image for key lives
func (s *Store) BaselinePath(key scheduler.Key) string {
	return keyPath(s.baselineDir, key, ".png")
}

func (s *Store) currentPath(key scheduler.Key) string {
	return keyPath(s.outputDir, key, ".png")
}

func (s *Store) diffPath(key scheduler.Key) string {
	return keyPath(s.outputDir, key, ".diff.png")
}

// Save writes the capture as the new reference image for key
func (s *Store) Save(_ context.Context, key scheduler.Key, c *scheduler.Capture) (string, error) {
	img := prepare(c)
	path := s.BaselinePath(key)
	if err := writePNG(path, img); err != nil {
		return "", fmt.Errorf("saving baseline for %s: %w", key, err)
	}
	logging.Debug("Saved baseline %s", path)
	return path, nil
}

// Compare checks the capture against the reference image for key. The
// current capture is always written; a diff image is written only when
// the images differ. scheduler.ErrNoBaseline is returned when key has no
// reference image yet.
func (s *Store) Compare(_ context.Context, key scheduler.Key, c *scheduler.Capture, tolerance float64) (scheduler.Comparison, error) {
	current := prepare(c)
	cmp := scheduler.Comparison{
		BaselinePath: s.BaselinePath(key),
		CurrentPath:  s.currentPath(key),
	}
	if err := writePNG(cmp.CurrentPath, current); err != nil {
		return cmp, fmt.Errorf("writing current image for %s: %w", key, err)
	}

	baseline, err := readPNG(cmp.BaselinePath)
	if errors.Is(err, fs.ErrNotExist) {
		return cmp, scheduler.ErrNoBaseline
	}
	if err != nil {
		return cmp, fmt.Errorf("reading baseline for %s: %w", key, err)
	}
	// regions ignored now are ignored in the reference too
	Mask(baseline, c.Ignore)

	res := Images(baseline, current, tolerance)
	cmp.Equal = res.Equal()
	cmp.DiffPixels = res.DiffPixels
	cmp.DiffBounds = res.Bounds
	if cmp.Equal {
		return cmp, nil
	}

	cmp.DiffPath = s.diffPath(key)
	if err := writePNG(cmp.DiffPath, Highlight(baseline, current, tolerance, res)); err != nil {
		return cmp, fmt.Errorf("writing diff image for %s: %w", key, err)
	}
	logging.Info("%s differs from baseline: %d pixels in %v", key, res.DiffPixels, res.Bounds)
	return cmp, nil
}

func prepare(c *scheduler.Capture) *image.RGBA {
	img := ToRGBA(c.Image)
	if len(c.Ignore) > 0 {
		// never paint over the caller's image
		if img == c.Image {
			img = cloneRGBA(img)
		}
		Mask(img, c.Ignore)
	}
	return img
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func keyPath(root string, key scheduler.Key, ext string) string {
	parts := []string{root}
	for _, p := range key.SuitePath {
		parts = append(parts, sanitize(p))
	}
	parts = append(parts, sanitize(key.State), sanitize(key.Browser)+ext)
	return filepath.Join(parts...)
}

var unsafeChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")

func sanitize(name string) string {
	name = unsafeChars.Replace(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readPNG(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	return ToRGBA(img), nil
}

// Discard accepts every capture without touching the disk. The static
// driver uses it, since it has nothing to compare.
type Discard struct{}

func (Discard) Compare(context.Context, scheduler.Key, *scheduler.Capture, float64) (scheduler.Comparison, error) {
	return scheduler.Comparison{Equal: true}, nil
}

func (Discard) Save(context.Context, scheduler.Key, *scheduler.Capture) (string, error) {
	return "", nil
}
