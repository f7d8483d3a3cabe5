package mesh

// BoolAttr is a boolean attribute over some element domain that is either a
// single uniform value or varies per element. Uniform attributes let callers
// skip allocating full-size derived data when every element agrees.
type BoolAttr struct {
	varying []bool
	uniform bool
}

// UniformBool returns an attribute with the same value for every element.
func UniformBool(v bool) BoolAttr {
	return BoolAttr{uniform: v}
}

// VaryingBool returns an attribute backed by a per-element array.
func VaryingBool(vals []bool) BoolAttr {
	return BoolAttr{varying: vals}
}

// IsUniform reports whether the attribute is a single constant.
func (a BoolAttr) IsUniform() bool {
	return a.varying == nil
}

// Uniform returns the constant value; only meaningful when IsUniform.
func (a BoolAttr) Uniform() bool {
	return a.uniform
}

// Len returns the varying array length, zero for uniform attributes.
func (a BoolAttr) Len() int {
	return len(a.varying)
}

// At returns the value for element i.
func (a BoolAttr) At(i int) bool {
	if a.varying == nil {
		return a.uniform
	}
	return a.varying[i]
}
