package uvpack

import (
	"math"

	"github.com/golang/geo/r2"
)

// TiledImage describes the UDIM layout of an image: either a sparse list of
// tile numbers (1001-based convention) or, when not tiled, a single implicit
// tile at the origin.
type TiledImage struct {
	Tiles []int
	Tiled bool
}

// UDIMParams selects the valid UDIM target area for packing: an image's tile
// set when present, and an implicit grid of GridShape[0] by GridShape[1]
// unit tiles.
type UDIMParams struct {
	Image     *TiledImage
	GridShape [2]int
}

func tileOrigin(number int) r2.Point {
	n := number - 1001
	return r2.Point{X: float64(n % 10), Y: float64(n / 10)}
}

// CoordsIntersectUDIM reports whether co lies in a valid tile: any of the
// image's tiles when a tiled image is supplied, otherwise any tile of the
// grid.
func (p *UDIMParams) CoordsIntersectUDIM(co r2.Point) bool {
	tx, ty := math.Floor(co.X), math.Floor(co.Y)

	if p.Image != nil && p.Image.Tiled {
		for _, number := range p.Image.Tiles {
			o := tileOrigin(number)
			if o.X == tx && o.Y == ty {
				return true
			}
		}
		return false
	}
	return tx >= 0 && ty >= 0 &&
		int(tx) < p.GridShape[0] && int(ty) < p.GridShape[1]
}

// ClosestUDIM returns the origin of the valid tile whose center is nearest to
// co. Image tiles and grid tiles are both candidates; the closer one wins.
func (p *UDIMParams) ClosestUDIM(co r2.Point) r2.Point {
	best := r2.Point{}
	bestDistSq := math.MaxFloat64

	consider := func(origin r2.Point) {
		center := origin.Add(r2.Point{X: 0.5, Y: 0.5})
		v := co.Sub(center)
		if d := v.Dot(v); d < bestDistSq {
			bestDistSq = d
			best = origin
		}
	}

	if p.Image != nil && p.Image.Tiled {
		for _, number := range p.Image.Tiles {
			consider(tileOrigin(number))
		}
	}
	for x := 0; x < p.GridShape[0]; x++ {
		for y := 0; y < p.GridShape[1]; y++ {
			consider(r2.Point{X: float64(x), Y: float64(y)})
		}
	}
	return best
}
