// Package diff stores reference screenshots on disk and compares fresh
// captures against them.
package diff

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	maskColor      = color.RGBA{0, 0, 0, 255}
	highlightColor = color.RGBA{255, 0, 255, 255}
	labelColor     = color.RGBA{255, 255, 255, 255}
	labelShadow    = color.RGBA{0, 0, 0, 255}
)

// Result describes the pixels that differ between two images
type Result struct {
	DiffPixels int
	Bounds     image.Rectangle
	SizeMatch  bool
}

// Equal reports whether no pixel differs
func (r Result) Equal() bool {
	return r.SizeMatch && r.DiffPixels == 0
}

// ToRGBA copies img into a zero-origin RGBA image
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Mask paints every rectangle solid so ignored regions compare equal
func Mask(img *image.RGBA, rects []image.Rectangle) {
	fill := image.NewUniform(maskColor)
	for _, r := range rects {
		r = r.Intersect(img.Bounds())
		if r.Empty() {
			continue
		}
		draw.Draw(img, r, fill, image.Point{}, draw.Src)
	}
}

// Images compares a and b pixel by pixel. Two pixels are the same when
// their CIEDE2000 distance is at most tolerance. Images of different sizes
// differ over the whole of the larger one.
func Images(a, b *image.RGBA, tolerance float64) Result {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Size() != bb.Size() {
		u := ab.Union(bb)
		return Result{DiffPixels: u.Dx() * u.Dy(), Bounds: u}
	}

	res := Result{SizeMatch: true}
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			ca := a.RGBAAt(ab.Min.X+x, ab.Min.Y+y)
			cb := b.RGBAAt(bb.Min.X+x, bb.Min.Y+y)
			if ca == cb || distance(ca, cb) <= tolerance {
				continue
			}
			res.DiffPixels++
			res.Bounds = res.Bounds.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return res
}

// distance is the CIEDE2000 color difference on the usual 0-100 scale
func distance(a, b color.RGBA) float64 {
	ca, okA := colorful.MakeColor(a)
	cb, okB := colorful.MakeColor(b)
	if !okA || !okB {
		// fully transparent on one side
		if okA == okB {
			return 0
		}
		return 100
	}
	return ca.DistanceCIEDE2000(cb) * 100
}

// Highlight renders current with the differing pixels painted over and a
// short label in the top left corner
func Highlight(baseline, current *image.RGBA, tolerance float64, res Result) *image.RGBA {
	out := image.NewRGBA(current.Bounds())
	draw.Draw(out, out.Bounds(), current, current.Bounds().Min, draw.Src)

	if res.SizeMatch {
		for y := res.Bounds.Min.Y; y < res.Bounds.Max.Y; y++ {
			for x := res.Bounds.Min.X; x < res.Bounds.Max.X; x++ {
				ca, cb := baseline.RGBAAt(x, y), current.RGBAAt(x, y)
				if ca != cb && distance(ca, cb) > tolerance {
					out.SetRGBA(x, y, highlightColor)
				}
			}
		}
	}

	label := fmt.Sprintf("%d px differ", res.DiffPixels)
	if !res.SizeMatch {
		label = fmt.Sprintf("size %dx%d -> %dx%d", baseline.Bounds().Dx(), baseline.Bounds().Dy(), current.Bounds().Dx(), current.Bounds().Dy())
	}
	drawLabel(out, label, 2, 12)
	return out
}

func drawLabel(img *image.RGBA, text string, x, y int) {
	for _, off := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(labelShadow),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(x+off[0], y+off[1]),
		}
		d.DrawString(text)
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
