package statemachine

// TypeID identifies a synthesized type in the member arena.
type TypeID uint32

const (
	// NoTypeID marks the absence of a synthesized type.
	NoTypeID TypeID = 0
)

// IsValid reports whether the type ID refers to an allocated type.
func (id TypeID) IsValid() bool { return id != NoTypeID }

// MemberID identifies a synthesized member in the member arena.
type MemberID uint32

const (
	// NoMemberID marks the absence of a member.
	NoMemberID MemberID = 0
)

// IsValid reports whether the member ID refers to an allocated member.
func (id MemberID) IsValid() bool { return id != NoMemberID }
