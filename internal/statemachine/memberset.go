package statemachine

// MemberSet is the resolved member list of a synthesized type for one
// generation: members in use, then members kept resident but unused.
type MemberSet struct {
	Type     TypeID
	Active   []MemberID
	Retained []MemberID
}

// All lists active members followed by retained ones.
func (s MemberSet) All() []MemberID {
	out := make([]MemberID, 0, len(s.Active)+len(s.Retained))
	out = append(out, s.Active...)
	return append(out, s.Retained...)
}

// Len reports the total number of members.
func (s MemberSet) Len() int { return len(s.Active) + len(s.Retained) }

// Names resolves the member names in listing order.
func (s MemberSet) Names(a *Arena) []string {
	ids := s.All()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = a.Member(id).Name
	}
	return out
}

// FieldNames resolves the names of field members in listing order.
func (s MemberSet) FieldNames(a *Arena) []string {
	var out []string
	for _, id := range s.All() {
		if m := a.Member(id); m.Kind == MemberField {
			out = append(out, m.Name)
		}
	}
	return out
}
