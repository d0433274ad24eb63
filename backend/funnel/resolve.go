package funnel

import "math"

type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) corners() [4][2]float64 {
	right, bottom := r.Left+r.Width, r.Top+r.Height
	return [4][2]float64{{r.Left, r.Top}, {right, r.Top}, {r.Left, bottom}, {right, bottom}}
}

// Target is a droppable region of the board layout, usually a rendered item card.
type Target struct {
	ID   string `json:"id"`
	Rect Rect   `json:"rect"`
}

// DropResolver maps the dragged rectangle at release to the id of the target it was dropped over.
type DropResolver interface {
	ResolveDropTarget(pointer Rect, layout []Target) (string, bool)
}

type DropResolverFunc func(pointer Rect, layout []Target) (string, bool)

func (f DropResolverFunc) ResolveDropTarget(pointer Rect, layout []Target) (string, bool) {
	return f(pointer, layout)
}

// ClosestCorners resolves to the target whose corners are nearest to the corners of the dragged rectangle, summed
// over all four pairs. Ties go to the earliest target in the layout.
var ClosestCorners DropResolver = DropResolverFunc(closestCorners)

func closestCorners(pointer Rect, layout []Target) (string, bool) {
	best := -1
	bestDistance := math.Inf(1)
	pc := pointer.corners()

	for i, target := range layout {
		tc := target.Rect.corners()
		var d float64
		for j := range pc {
			d += math.Hypot(pc[j][0]-tc[j][0], pc[j][1]-tc[j][1])
		}
		if d < bestDistance {
			best, bestDistance = i, d
		}
	}

	if best < 0 {
		return "", false
	}
	return layout[best].ID, true
}
