package uvpack

import (
	"math"
	"sort"
)

// Box is one rectangle to pack. W and H are set by the caller; the packer
// fills in X and Y with the placement of the box's lower-left corner.
type Box struct {
	W, H float64
	X, Y float64

	// Index ties the box back to the caller's island list.
	Index int
}

// BoxPacker places a set of boxes without overlap and reports the total
// extent used. Implementations may reorder the slice but must keep every
// element.
type BoxPacker interface {
	Pack(boxes []*Box) (totalW, totalH float64)
}

// ShelfPacker is the default packer: boxes sorted by height land on
// left-to-right shelves whose target width is derived from the total box
// area, which keeps the result roughly square.
type ShelfPacker struct{}

// Pack implements BoxPacker.
func (ShelfPacker) Pack(boxes []*Box) (totalW, totalH float64) {
	if len(boxes) == 0 {
		return 0, 0
	}

	area, widest := 0.0, 0.0
	for _, b := range boxes {
		area += b.W * b.H
		if b.W > widest {
			widest = b.W
		}
	}
	targetW := math.Max(math.Sqrt(area), widest)

	sort.Slice(boxes, func(i, j int) bool {
		if boxes[i].H != boxes[j].H {
			return boxes[i].H > boxes[j].H
		}
		return boxes[i].W > boxes[j].W
	})

	x, y, shelfH := 0.0, 0.0, 0.0
	for _, b := range boxes {
		if x > 0 && x+b.W > targetW {
			y += shelfH
			x, shelfH = 0, 0
		}
		b.X, b.Y = x, y
		x += b.W
		if b.H > shelfH {
			shelfH = b.H
		}
		if x > totalW {
			totalW = x
		}
	}
	totalH = y + shelfH
	return totalW, totalH
}
