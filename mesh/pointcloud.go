package mesh

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PointCloud is a fixed-size set of points whose geometry lives in named
// vector attributes, looked up with a default fallback the way generic
// attribute systems do.
type PointCloud struct {
	size        int
	vectorAttrs map[string][]r3.Vector
}

// NewPointCloud returns a point cloud of the given size with no attributes.
func NewPointCloud(size int) *PointCloud {
	return &PointCloud{size: size, vectorAttrs: map[string][]r3.Vector{}}
}

// Size returns the number of points.
func (pc *PointCloud) Size() int {
	return pc.size
}

// SetVectorAttribute stores a per-point vector attribute.
func (pc *PointCloud) SetVectorAttribute(name string, vals []r3.Vector) error {
	if len(vals) != pc.size {
		return errors.Errorf("attribute %q has %d values for %d points", name, len(vals), pc.size)
	}
	pc.vectorAttrs[name] = vals
	return nil
}

// VectorAttribute looks up a per-point vector attribute, returning a slice
// filled with the default value when the attribute is absent.
func (pc *PointCloud) VectorAttribute(name string, def r3.Vector) []r3.Vector {
	if vals, ok := pc.vectorAttrs[name]; ok {
		return vals
	}
	vals := make([]r3.Vector, pc.size)
	for i := range vals {
		vals[i] = def
	}
	return vals
}
