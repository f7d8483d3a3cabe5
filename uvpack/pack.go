package uvpack

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"github.com/meshops/meshbvh/mesh"
)

// PackParams controls island discovery, filtering and placement.
type PackParams struct {
	// Rotate fits each island's minimum-area rotation before packing.
	Rotate bool

	OnlySelectedFaces bool
	OnlySelectedUVs   bool
	UseSeams          bool

	// IgnorePinned drops islands containing any pinned UV corner.
	IgnorePinned bool

	// PinUnselected makes unselected UV corners count as pinned.
	PinUnselected bool

	// CorrectAspect fits rotations in texel space using AspectY.
	CorrectAspect bool
	AspectY       float64

	// Margin is padding added around every island's box, in UV units.
	Margin float64

	// Packer places the island boxes; nil selects ShelfPacker.
	Packer BoxPacker

	// Notify, when set, is called once per mesh whose UVs were modified.
	Notify func(*mesh.EditMesh)
}

// PackIslands discovers the UV islands of every mesh, filters and optionally
// rotates them, packs their bounding boxes and writes the transformed UVs
// back. With udim set, the whole packed result lands on the valid UDIM tile
// closest to the original selection. Packing nothing modifies nothing.
func PackIslands(ems []*mesh.EditMesh, udim *UDIMParams, params PackParams, logger golog.Logger) {
	aspectY := 1.0
	if params.CorrectAspect && params.AspectY != 0 {
		aspectY = params.AspectY
	}
	ip := IslandParams{
		OnlySelectedFaces: params.OnlySelectedFaces,
		OnlySelectedUVs:   params.OnlySelectedUVs,
		UseSeams:          params.UseSeams,
		AspectY:           aspectY,
	}

	var islands []*Island
	owner := map[*Island]*mesh.EditMesh{}
	selection := r2.EmptyRect()
	for _, em := range ems {
		for _, isle := range CalcUVIslands(em, ip) {
			if params.IgnorePinned && isle.hasPins(params.PinUnselected) {
				continue
			}
			selection = selection.Union(isle.boundsOf())
			owner[isle] = em
			islands = append(islands, isle)
		}
	}
	if len(islands) == 0 {
		logger.Debug("no UV islands to pack")
		return
	}
	logger.Debugw("packing UV islands", "islands", len(islands), "meshes", len(ems))

	baseOffset := r2.Point{}
	if udim != nil {
		centroid := selection.Center()
		if udim.CoordsIntersectUDIM(centroid) {
			baseOffset = r2.Point{X: math.Floor(centroid.X), Y: math.Floor(centroid.Y)}
		} else {
			baseOffset = udim.ClosestUDIM(centroid)
		}
	}

	boxes := make([]*Box, len(islands))
	for i, isle := range islands {
		if params.Rotate {
			isle.RotateFit()
		}
		b := isle.boundsOf()
		boxes[i] = &Box{
			W:     b.X.Length() + 2*params.Margin,
			H:     b.Y.Length() + 2*params.Margin,
			Index: i,
		}
	}

	packer := params.Packer
	if packer == nil {
		packer = ShelfPacker{}
	}
	totalW, totalH := packer.Pack(boxes)
	if totalW <= 0 {
		totalW = 1
	}
	if totalH <= 0 {
		totalH = 1
	}

	scale := mat.NewDense(2, 2, []float64{1 / totalW, 0, 0, 1 / totalH})
	var invScale mat.Dense
	if err := invScale.Inverse(scale); err != nil {
		logger.Errorw("pack scale not invertible", "error", err)
		return
	}
	offVec := mat.NewVecDense(2, []float64{baseOffset.X, baseOffset.Y})
	var scaledOff mat.VecDense
	scaledOff.MulVec(&invScale, offVec)

	modified := map[*mesh.EditMesh]bool{}
	for _, box := range boxes {
		isle := islands[box.Index]
		translate := r2.Point{
			X: box.X + params.Margin - isle.Bounds.X.Lo + scaledOff.AtVec(0),
			Y: box.Y + params.Margin - isle.Bounds.Y.Lo + scaledOff.AtVec(1),
		}
		// Pre-multiply keeps precision when islands pack near the origin:
		// scale(uv + t), not scale(uv) + t.
		for _, f := range isle.Faces {
			for _, l := range f.Loops {
				l.UV = r2.Point{
					X: (l.UV.X + translate.X) * scale.At(0, 0),
					Y: (l.UV.Y + translate.Y) * scale.At(1, 1),
				}
			}
		}
		modified[owner[isle]] = true
	}

	if params.Notify != nil {
		for em := range modified {
			params.Notify(em)
		}
	}
}
