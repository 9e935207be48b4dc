package locals

// NodeCorrespondence maps a syntax position in the new body to the position of
// the corresponding node in the previous body.
type NodeCorrespondence interface {
	Map(newPos Position) (Position, bool)
}

// IdentityMap maps every position to itself.
type IdentityMap struct{}

func (IdentityMap) Map(newPos Position) (Position, bool) { return newPos, true }

// MapFunc adapts a function to NodeCorrespondence.
type MapFunc func(newPos Position) (Position, bool)

func (f MapFunc) Map(newPos Position) (Position, bool) { return f(newPos) }

// PairMap is an explicit new-to-old table. Positions absent from the table have
// no counterpart.
type PairMap map[Position]Position

func (m PairMap) Map(newPos Position) (Position, bool) {
	old, ok := m[newPos]
	return old, ok
}

// MapOrIdentity maps pos through m, treating a nil map as the identity.
func MapOrIdentity(m NodeCorrespondence, pos Position) (Position, bool) {
	if m == nil {
		return pos, true
	}
	return m.Map(pos)
}
