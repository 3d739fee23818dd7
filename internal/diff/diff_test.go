package diff

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lance13c/stateshot/internal/scheduler"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var (
	white    = color.RGBA{255, 255, 255, 255}
	offWhite = color.RGBA{254, 254, 254, 255}
	red      = color.RGBA{255, 0, 0, 255}
)

func TestImages_Identical(t *testing.T) {
	res := Images(solid(4, 4, white), solid(4, 4, white), 0)
	assert.True(t, res.Equal())
	assert.Zero(t, res.DiffPixels)
}

func TestImages_Tolerance(t *testing.T) {
	a, b := solid(4, 4, white), solid(4, 4, white)
	b.SetRGBA(1, 2, offWhite)

	assert.True(t, Images(a, b, 2.3).Equal(), "barely visible change is within the default tolerance")

	b.SetRGBA(3, 3, red)
	res := Images(a, b, 2.3)
	assert.False(t, res.Equal())
	assert.Equal(t, 1, res.DiffPixels)
	assert.Equal(t, image.Rect(3, 3, 4, 4), res.Bounds)

	res = Images(a, b, 0)
	assert.Equal(t, 2, res.DiffPixels)
	assert.Equal(t, image.Rect(1, 2, 4, 4), res.Bounds)
}

func TestImages_SizeMismatch(t *testing.T) {
	res := Images(solid(4, 4, white), solid(4, 6, white), 100)
	assert.False(t, res.Equal())
	assert.False(t, res.SizeMatch)
	assert.Equal(t, 24, res.DiffPixels)
}

func TestMask(t *testing.T) {
	a, b := solid(6, 6, white), solid(6, 6, white)
	b.SetRGBA(2, 2, red)
	ignore := []image.Rectangle{image.Rect(1, 1, 3, 3), image.Rect(50, 50, 60, 60)}
	Mask(a, ignore)
	Mask(b, ignore)
	assert.True(t, Images(a, b, 0).Equal())
}

func TestToRGBA_ZeroOrigin(t *testing.T) {
	src := solid(10, 10, white).SubImage(image.Rect(2, 3, 7, 8))
	rgba := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 5, 5), rgba.Bounds())
}

func TestStore_GatherThenCompare(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "baselines"), filepath.Join(dir, "current"))
	ctx := context.Background()
	key := scheduler.Key{SuitePath: []string{"button", "a/b"}, State: "plain", Browser: "chrome"}

	_, err := store.Compare(ctx, key, &scheduler.Capture{Image: solid(5, 5, white)}, 2.3)
	require.ErrorIs(t, err, scheduler.ErrNoBaseline)

	path, err := store.Save(ctx, key, &scheduler.Capture{Image: solid(5, 5, white)})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "baselines", "button", "a_b", "plain", "chrome.png"), path)
	assert.FileExists(t, path)

	cmp, err := store.Compare(ctx, key, &scheduler.Capture{Image: solid(5, 5, white)}, 2.3)
	require.NoError(t, err)
	assert.True(t, cmp.Equal)
	assert.FileExists(t, cmp.CurrentPath)
	assert.Empty(t, cmp.DiffPath)

	changed := solid(5, 5, white)
	changed.SetRGBA(4, 0, red)
	cmp, err = store.Compare(ctx, key, &scheduler.Capture{Image: changed}, 2.3)
	require.NoError(t, err)
	assert.False(t, cmp.Equal)
	assert.Equal(t, 1, cmp.DiffPixels)
	assert.Equal(t, image.Rect(4, 0, 5, 1), cmp.DiffBounds)
	assert.FileExists(t, cmp.DiffPath)
}

func TestStore_IgnoredRegionsDoNotCount(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, filepath.Join(dir, "out"))
	ctx := context.Background()
	key := scheduler.Key{SuitePath: []string{"clock"}, State: "ticking", Browser: "firefox"}
	ignore := []image.Rectangle{image.Rect(0, 0, 2, 2)}

	_, err := store.Save(ctx, key, &scheduler.Capture{Image: solid(4, 4, white), Ignore: ignore})
	require.NoError(t, err)

	original := solid(4, 4, white)
	original.SetRGBA(1, 1, red)
	cmp, err := store.Compare(ctx, key, &scheduler.Capture{Image: original, Ignore: ignore}, 0)
	require.NoError(t, err)
	assert.True(t, cmp.Equal)
	assert.Equal(t, red, original.RGBAAt(1, 1), "caller's image is left untouched")
}

func TestStore_CorruptBaseline(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, t.TempDir())
	key := scheduler.Key{SuitePath: []string{"x"}, State: "y", Browser: "z"}
	require.NoError(t, os.MkdirAll(filepath.Dir(store.BaselinePath(key)), 0755))
	require.NoError(t, os.WriteFile(store.BaselinePath(key), []byte("not a png"), 0644))

	_, err := store.Compare(context.Background(), key, &scheduler.Capture{Image: solid(1, 1, white)}, 2.3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, scheduler.ErrNoBaseline)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "_", sanitize(".."))
	assert.Equal(t, "_", sanitize("  "))
	assert.Equal(t, "a_b_c", sanitize("a/b:c"))
}
