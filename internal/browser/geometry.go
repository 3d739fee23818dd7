package browser

import (
	"image"
	"math"

	"github.com/lance13c/stateshot/internal/actions"
)

// quadCenter returns the center of a DOM quad (four x,y pairs)
func quadCenter(q []float64) (actions.Point, bool) {
	if len(q) < 8 {
		return actions.Point{}, false
	}
	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return actions.Point{X: x / 4, Y: y / 4}, true
}

// quadTopLeft returns the smallest x and y of a DOM quad
func quadTopLeft(q []float64) (actions.Point, bool) {
	if len(q) < 8 {
		return actions.Point{}, false
	}
	p := actions.Point{X: q[0], Y: q[1]}
	for i := 2; i < 8; i += 2 {
		p.X = math.Min(p.X, q[i])
		p.Y = math.Min(p.Y, q[i+1])
	}
	return p, true
}

// pageRect is a rectangle in CSS pixels relative to the document
type pageRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r pageRect) empty() bool {
	return r.W <= 0 || r.H <= 0
}

// toImage maps r into the pixel space of a screenshot taken of area,
// where each CSS pixel became scale image pixels
func (r pageRect) toImage(area pageRect, scale float64) image.Rectangle {
	x0 := math.Floor((r.X - area.X) * scale)
	y0 := math.Floor((r.Y - area.Y) * scale)
	x1 := math.Ceil((r.X + r.W - area.X) * scale)
	y1 := math.Ceil((r.Y + r.H - area.Y) * scale)
	return image.Rect(int(x0), int(y0), int(x1), int(y1))
}
