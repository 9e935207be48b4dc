package locals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encdelta/internal/locals"
)

func user(name, typ string, pos locals.Position) locals.Descriptor {
	return locals.Descriptor{Kind: locals.KindUserDefined, Position: pos, Type: typ, Name: name}
}

func TestAllocateWithoutPreserveNumbersSequentially(t *testing.T) {
	base := locals.NewSignature(user("x", "int", 1))
	descs := []locals.Descriptor{user("a", "string", 4), user("b", "int", 9)}

	res := locals.NewAllocator().Allocate(base, descs, locals.Options{})

	assert.Equal(t, []int{0, 1}, res.Slots)
	assert.Equal(t, []string{"[string] V_0", "[int] V_1"}, res.Signature.Lines())
	assert.Zero(t, res.Reused)
}

func TestAllocateKeepsMatchedSlotAndAppendsNewLocal(t *testing.T) {
	// i was declared at offset 11; after the edit it sits at offset 15 and a
	// new local j precedes it.
	base := locals.NewSignature(user("i", "int", 11), user("b", "bool", 30))
	descs := []locals.Descriptor{user("j", "int", 3), user("i", "int", 15)}
	syntax := locals.PairMap{15: 11}

	res := locals.NewAllocator().Allocate(base, descs, locals.Options{Preserve: true, SyntaxMap: syntax})

	require.Equal(t, []int{2, 0}, res.Slots)
	assert.Equal(t, []string{"[int] V_0", "[bool] V_1", "[int] V_2"}, res.Signature.Lines())
	assert.True(t, res.Signature.Slots[1].Unused, "b has no counterpart and stays as a placeholder")
	assert.Equal(t, locals.Position(15), res.Signature.Slots[0].Descriptor.Position)
	assert.Equal(t, 1, res.Reused)
	assert.Equal(t, 1, res.Appended)
}

func TestAllocateTypeChangeRetainsOldSlot(t *testing.T) {
	base := locals.NewSignature(user("x", "int", 11))
	descs := []locals.Descriptor{user("x", "double", 11)}

	res := locals.NewAllocator().Allocate(base, descs, locals.Options{Preserve: true, SyntaxMap: locals.IdentityMap{}})

	assert.Equal(t, []int{1}, res.Slots)
	assert.Equal(t, []string{"[int] V_0", "[double] V_1"}, res.Signature.Lines())
	assert.True(t, res.Signature.Slots[0].Unused)
}

func TestAllocateTieBreakUsesLowestSlotFirst(t *testing.T) {
	temp := func(typ string) locals.Descriptor {
		return locals.Descriptor{Kind: locals.KindLoweringTemp, Position: 40, Type: typ}
	}
	base := locals.NewSignature(temp("int"), user("s", "string", 2), temp("int"))

	tests := []struct {
		name  string
		descs []locals.Descriptor
		want  []int
	}{
		{name: "one claimant", descs: []locals.Descriptor{temp("int")}, want: []int{0}},
		{name: "two claimants", descs: []locals.Descriptor{temp("int"), temp("int")}, want: []int{0, 2}},
		{name: "three claimants", descs: []locals.Descriptor{temp("int"), temp("int"), temp("int")}, want: []int{0, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := locals.NewAllocator().Allocate(base, tt.descs, locals.Options{Preserve: true})
			assert.Equal(t, tt.want, res.Slots)
		})
	}
}

func TestAllocateNeverReusesPlaceholders(t *testing.T) {
	base := locals.Signature{Slots: []locals.Slot{
		{Descriptor: user("gone", "object", 5), Unused: true},
		{Descriptor: user("y", "int", 8)},
	}}
	descs := []locals.Descriptor{user("gone", "object", 5), user("y", "int", 8)}

	res := locals.NewAllocator().Allocate(base, descs, locals.Options{Preserve: true, SyntaxMap: locals.IdentityMap{}})

	assert.Equal(t, []int{2, 1}, res.Slots)
	assert.Equal(t, []string{"[object] V_0", "[int] V_1", "[object] V_2"}, res.Signature.Lines())
	assert.True(t, res.Signature.Slots[0].Unused)
}

func TestAllocateUnchangedBodyReturnsBaselineVerbatim(t *testing.T) {
	base := locals.Signature{Slots: []locals.Slot{
		{Descriptor: user("a", "int", 3)},
		{Descriptor: user("old", "object", 9), Unused: true},
	}}
	descs := []locals.Descriptor{user("a", "int", 3)}

	res := locals.NewAllocator().Allocate(base, descs, locals.Options{Preserve: true, BodyUnchanged: true})

	assert.True(t, res.Signature.Equal(base))
	assert.Equal(t, []int{0}, res.Slots)
}

func TestAllocateMissingSyntaxMapUsesIdentity(t *testing.T) {
	base := locals.NewSignature(user("a", "int", 3), user("b", "int", 7))
	descs := []locals.Descriptor{user("b", "int", 7), user("c", "long", 12)}

	res := locals.NewAllocator().Allocate(base, descs, locals.Options{Preserve: true})

	assert.Equal(t, []int{1, 2}, res.Slots)
	assert.True(t, res.Signature.Slots[0].Unused)
}

func TestAllocateTypeKeyedKinds(t *testing.T) {
	awaiter := func(typ string) locals.Descriptor {
		return locals.Descriptor{Kind: locals.KindAwaiter, Position: 20, Type: typ}
	}
	assert.NotEqual(t, awaiter("TaskAwaiter<int>").Key(), awaiter("TaskAwaiter").Key())
	assert.Equal(t, user("a", "int", 1).Key(), user("a", "long", 1).Key())

	base := locals.NewSignature(awaiter("TaskAwaiter<int>"))
	res := locals.NewAllocator().Allocate(base, []locals.Descriptor{awaiter("TaskAwaiter")}, locals.Options{Preserve: true})
	assert.Equal(t, []int{1}, res.Slots)
}

func TestAllocateCustomEquivalence(t *testing.T) {
	alloc := &locals.Allocator{Equivalence: func(prev, next string) bool {
		return prev == next || (prev == "System.Int32" && next == "int")
	}}
	base := locals.NewSignature(user("x", "System.Int32", 4))

	res := alloc.Allocate(base, []locals.Descriptor{user("x", "int", 4)}, locals.Options{Preserve: true})

	assert.Equal(t, []int{0}, res.Slots)
	assert.Equal(t, "System.Int32", res.Signature.Slots[0].Descriptor.Type, "claimed slots keep the baseline type")
}

func TestAllocateTypeKeyedKindsIgnoreEquivalence(t *testing.T) {
	alloc := &locals.Allocator{Equivalence: func(prev, next string) bool { return true }}
	awaiter := locals.Descriptor{Kind: locals.KindAwaiter, Position: 20, Type: "TaskAwaiter<int>"}
	base := locals.NewSignature(awaiter)

	awaiter.Type = "TaskAwaiter<long>"
	res := alloc.Allocate(base, []locals.Descriptor{awaiter}, locals.Options{Preserve: true})

	assert.Equal(t, []int{1}, res.Slots)
	assert.Equal(t, []string{"[TaskAwaiter<int>] V_0", "[TaskAwaiter<long>] V_1"}, res.Signature.Lines())
	assert.True(t, res.Signature.Slots[0].Unused)

	res = alloc.Allocate(base, []locals.Descriptor{user("x", "long", 20)}, locals.Options{Preserve: true})
	assert.Equal(t, []int{1}, res.Slots, "a user local never claims an awaiter slot")
}

func TestAllocateIsMonotonicAcrossGenerations(t *testing.T) {
	alloc := locals.NewAllocator()
	sig := locals.NewSignature(user("a", "int", 1), user("b", "string", 2))
	gens := [][]locals.Descriptor{
		{user("b", "string", 2)},
		{user("c", "int", 3)},
		{user("a", "int", 1), user("c", "int", 3)},
	}
	for _, descs := range gens {
		res := alloc.Allocate(sig, descs, locals.Options{Preserve: true})
		require.GreaterOrEqual(t, res.Signature.Len(), sig.Len())
		for i := range sig.Slots {
			assert.Equal(t, sig.Slots[i].Descriptor.Type, res.Signature.Slots[i].Descriptor.Type)
		}
		sig = res.Signature
	}
	// a lost its slot in the first step; it comes back as a fresh slot
	assert.Equal(t, []string{"[int] V_0", "[string] V_1", "[int] V_2", "[int] V_3"}, sig.Lines())
}

func TestSlotNumber(t *testing.T) {
	n, err := locals.SlotNumber(3)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), n)
	_, err = locals.SlotNumber(1 << 17)
	assert.Error(t, err)
}
