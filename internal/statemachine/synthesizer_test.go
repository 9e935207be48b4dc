package statemachine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encdelta/internal/locals"
	"encdelta/internal/statemachine"
)

const methodF = "C.F()"

var refF = statemachine.MethodRef{Key: methodF, Name: "F", Ordinal: 0, Container: "C"}

// asyncBaseline builds the arena of generation 0 holding <F>d__0 with the
// given extra fields.
func asyncBaseline(t *testing.T, extra ...statemachine.Member) (*statemachine.Arena, statemachine.TypeID) {
	t.Helper()
	a := statemachine.NewArena(0)
	id := a.NewType(statemachine.Type{
		Kind:      statemachine.TypeAsync,
		Name:      "<F>d__0",
		Container: "C",
		Method:    methodF,
	})
	members := []statemachine.Member{
		{Role: statemachine.RoleStateOrdinal, Name: "<>1__state", Type: "int"},
		{Role: statemachine.RoleBuilder, Name: "<>t__builder", Type: "System.Runtime.CompilerServices.AsyncTaskMethodBuilder"},
		{Role: statemachine.RoleHelperMethod, Kind: statemachine.MemberMethod, Name: ".ctor"},
		{Role: statemachine.RoleHelperMethod, Kind: statemachine.MemberMethod, Name: "MoveNext"},
		{Role: statemachine.RoleHelperMethod, Kind: statemachine.MemberMethod, Name: "System.Runtime.CompilerServices.IAsyncStateMachine.SetStateMachine", Params: 1},
	}
	for _, m := range append(members, extra...) {
		m.Owner = id
		m.Scope = methodF
		m.Active = true
		a.NewMember(m)
	}
	a.Seed()
	return a, id
}

func hoisted(name, typ string, pos locals.Position) statemachine.Member {
	return statemachine.Member{Role: statemachine.RoleHoistedLocal, Name: name, Type: typ, Position: pos, HasPosition: true}
}

func awaiterMember(name, typ string, pos locals.Position) statemachine.Member {
	return statemachine.Member{Role: statemachine.RoleAwaiter, Name: name, Type: typ, Position: pos, HasPosition: true}
}

func userLocal(name, typ string, pos locals.Position) locals.Descriptor {
	return locals.Descriptor{Kind: locals.KindUserDefined, Name: name, Type: typ, Position: pos}
}

func commit(t *testing.T, a *statemachine.Arena, plan *statemachine.Plan, err error) (statemachine.TypeID, statemachine.MemberSet) {
	t.Helper()
	require.NoError(t, err)
	return a.Commit(plan)
}

func TestHoistedFieldTypeChangeAddsNewField(t *testing.T) {
	base, id := asyncBaseline(t,
		hoisted("<x>5__1", "int", 11),
		awaiterMember("<>u__1", "TaskAwaiter", 40),
	)
	next := base.Clone()
	shape := statemachine.StateMachineShape{
		Kind:     statemachine.TypeAsync,
		Hoisted:  []locals.Descriptor{userLocal("x", "double", 11)},
		Awaiters: []statemachine.Awaiter{{Type: "TaskAwaiter", Position: 40, HasPosition: true}},
	}

	plan, _, err := statemachine.NewSynthesizer(next, 1, refF, locals.IdentityMap{}).StateMachine(shape)
	owner, set := commit(t, next, plan, err)

	assert.Equal(t, id, owner)
	assert.Equal(t, []string{"<>1__state", "<>t__builder", "<x>5__2", "<>u__1", "<x>5__1"}, set.FieldNames(next))
	assert.Equal(t, 1, base.Type(id).Counters.Hoisted, "baseline arena is not modified")
	assert.Equal(t, 2, next.Type(id).Counters.Hoisted)
}

func TestUnchangedStateMachineReusesEveryMember(t *testing.T) {
	base, _ := asyncBaseline(t, hoisted("<x>5__1", "int", 11), awaiterMember("<>u__1", "TaskAwaiter", 40))
	next := base.Clone()
	shape := statemachine.StateMachineShape{
		Kind:     statemachine.TypeAsync,
		Hoisted:  []locals.Descriptor{userLocal("x", "int", 14)},
		Awaiters: []statemachine.Awaiter{{Type: "TaskAwaiter", Position: 43, HasPosition: true}},
	}
	syntax := locals.PairMap{14: 11, 43: 40}

	plan, _, err := statemachine.NewSynthesizer(next, 1, refF, syntax).StateMachine(shape)
	require.NoError(t, err)
	assert.Empty(t, plan.Added)

	_, set := next.Commit(plan)
	assert.Empty(t, set.Retained)
	x := next.Member(next.FindMember(set.Type, "<x>5__1"))
	assert.Equal(t, locals.Position(14), x.Position, "reused members carry the new position")
}

func TestRemovedHoistedLocalIsRetainedAndNeverRevived(t *testing.T) {
	base, id := asyncBaseline(t, hoisted("<x>5__1", "int", 11), hoisted("<y>5__2", "int", 20))
	gen1 := base.Clone()
	shape := statemachine.StateMachineShape{
		Kind:    statemachine.TypeAsync,
		Hoisted: []locals.Descriptor{userLocal("x", "int", 11)},
	}
	plan, _, err := statemachine.NewSynthesizer(gen1, 1, refF, nil).StateMachine(shape)
	_, set := commit(t, gen1, plan, err)
	assert.Equal(t, []string{"<>1__state", "<>t__builder", "<x>5__1", "<y>5__2"}, set.FieldNames(gen1))
	assert.Len(t, set.Retained, 1)

	gen2 := gen1.Clone()
	shape.Hoisted = append(shape.Hoisted, userLocal("y", "int", 20))
	plan, _, err = statemachine.NewSynthesizer(gen2, 2, refF, nil).StateMachine(shape)
	_, set = commit(t, gen2, plan, err)
	assert.Equal(t, []string{"<>1__state", "<>t__builder", "<x>5__1", "<y>5__3", "<y>5__2"}, set.FieldNames(gen2))
	assert.Equal(t, 3, gen2.Type(id).Counters.Hoisted)
}

func TestSynthesizedTempsShareTheHoistedCounter(t *testing.T) {
	base, _ := asyncBaseline(t, hoisted("<x>5__1", "int", 11))
	next := base.Clone()
	shape := statemachine.StateMachineShape{
		Kind: statemachine.TypeAsync,
		Hoisted: []locals.Descriptor{
			userLocal("x", "int", 11),
			{Kind: locals.KindUsing, Type: "System.IDisposable", Position: 30},
		},
		Awaiters: []statemachine.Awaiter{{Type: "TaskAwaiter<int>", Position: 50, HasPosition: true}},
	}
	plan, _, err := statemachine.NewSynthesizer(next, 1, refF, nil).StateMachine(shape)
	_, set := commit(t, next, plan, err)
	assert.Equal(t, []string{"<>1__state", "<>t__builder", "<x>5__1", "<>s__2", "<>u__1"}, set.FieldNames(next))
}

func TestLoweringTempsAreNotHoisted(t *testing.T) {
	base, _ := asyncBaseline(t, hoisted("<x>5__1", "int", 11))
	next := base.Clone()
	shape := statemachine.StateMachineShape{
		Kind: statemachine.TypeAsync,
		Hoisted: []locals.Descriptor{
			userLocal("x", "int", 11),
			{Kind: locals.KindLoweringTemp, Type: "int", Position: 25},
			{Kind: locals.KindConditionalBranchDiscriminator, Type: "bool", Position: 27},
		},
	}
	plan, _, err := statemachine.NewSynthesizer(next, 1, refF, nil).StateMachine(shape)
	_, set := commit(t, next, plan, err)
	assert.Empty(t, plan.Added)
	assert.Equal(t, []string{"<>1__state", "<>t__builder", "<x>5__1"}, set.FieldNames(next))
}

func TestAwaiterWithoutPositionMatchesByType(t *testing.T) {
	base, _ := asyncBaseline(t,
		awaiterMember("<>u__1", "TaskAwaiter<int>", 40),
		awaiterMember("<>u__2", "TaskAwaiter", 60),
	)
	next := base.Clone()
	shape := statemachine.StateMachineShape{
		Kind: statemachine.TypeAsync,
		Awaiters: []statemachine.Awaiter{
			{Type: "TaskAwaiter"},
			{Type: "TaskAwaiter<string>"},
		},
	}
	plan, _, err := statemachine.NewSynthesizer(next, 1, refF, locals.PairMap{}).StateMachine(shape)
	_, set := commit(t, next, plan, err)
	assert.Equal(t, []string{"<>1__state", "<>t__builder", "<>u__2", "<>u__3", "<>u__1"}, set.FieldNames(next))
}

func TestConversionToStateMachineCreatesSuffixedType(t *testing.T) {
	a := statemachine.NewArena(0)
	shape := statemachine.StateMachineShape{
		Kind:        statemachine.TypeIterator,
		ElementType: "int",
		Hoisted:     []locals.Descriptor{userLocal("i", "int", 8)},
	}
	plan, tpl, err := statemachine.NewSynthesizer(a, 1, refF, nil).StateMachine(shape)
	require.NoError(t, err)
	require.NotNil(t, plan.NewType)
	assert.Equal(t, "<F>d__0#1", plan.NewType.Name)
	assert.Len(t, tpl.Interfaces, 5)
	assert.Equal(t, []string{statemachine.IteratorStateMachineAttribute}, tpl.KickoffAttributes)

	id, set := a.Commit(plan)
	assert.Equal(t, id, a.StateMachineOf(methodF))
	assert.Equal(t, []string{"<>1__state", "<>2__current", "<>l__initialThreadId", "<i>5__1"}, set.FieldNames(a))

	var methods, props int
	for _, mid := range set.All() {
		switch a.Member(mid).Kind {
		case statemachine.MemberMethod:
			methods++
		case statemachine.MemberProperty:
			props++
		}
	}
	assert.Equal(t, 8, methods)
	assert.Equal(t, 2, props)
}

func TestKindChangeCreatesNewStateMachine(t *testing.T) {
	base, id := asyncBaseline(t)
	next := base.Clone()
	shape := statemachine.StateMachineShape{Kind: statemachine.TypeIterator, ElementType: "int"}
	plan, _, err := statemachine.NewSynthesizer(next, 2, refF, nil).StateMachine(shape)
	newID, _ := commit(t, next, plan, err)
	assert.NotEqual(t, id, newID)
	assert.Equal(t, "<F>d__0#2", next.Type(newID).Name)
	assert.Equal(t, newID, next.StateMachineOf(methodF))
	assert.NotNil(t, next.Type(id), "the previous state machine stays in the chain")
}

func TestSingletonTypeChangeAddsReplacement(t *testing.T) {
	base, id := asyncBaseline(t)
	gen1 := base.Clone()
	shape := statemachine.StateMachineShape{Kind: statemachine.TypeAsync, ElementType: "int"}
	plan, _, err := statemachine.NewSynthesizer(gen1, 1, refF, nil).StateMachine(shape)
	owner, set := commit(t, gen1, plan, err)

	assert.Equal(t, id, owner)
	assert.Equal(t, []string{"<>1__state", "<>t__builder#1", "<>t__builder"}, set.FieldNames(gen1))
	require.Len(t, set.Retained, 1)
	old := gen1.Member(set.Retained[0])
	assert.Equal(t, "System.Runtime.CompilerServices.AsyncTaskMethodBuilder", old.Type, "the old builder keeps its type")
	assert.False(t, old.Active)

	gen2 := gen1.Clone()
	plan, _, err = statemachine.NewSynthesizer(gen2, 2, refF, nil).StateMachine(shape)
	require.NoError(t, err)
	assert.Empty(t, plan.Added, "the replacement is reused by later generations")
	_, set = gen2.Commit(plan)
	assert.Equal(t, []string{"<>1__state", "<>t__builder#1", "<>t__builder"}, set.FieldNames(gen2))
}

func TestFinallyHelpersAreNamedHelpers(t *testing.T) {
	a := statemachine.NewArena(0)
	shape := statemachine.StateMachineShape{Kind: statemachine.TypeIterator, ElementType: "int", FinallyHelpers: 2}
	plan, _, err := statemachine.NewSynthesizer(a, 0, refF, nil).StateMachine(shape)
	_, set := commit(t, a, plan, err)
	got := set.Names(a)
	assert.Contains(t, got, "<>m__Finally1")
	assert.Contains(t, got, "<>m__Finally2")
	assert.Equal(t, "<F>d__0", a.Type(set.Type).Name)
}

func TestClosuresMatchByScopePosition(t *testing.T) {
	a := statemachine.NewArena(0)
	scopes := []statemachine.ClosureShape{{
		Position: 10,
		Parent:   -1,
		Captures: []statemachine.Capture{{Name: "a", Type: "int"}},
		Lambdas:  []statemachine.Lambda{{Position: 30, Signature: "int"}},
	}}
	s0 := statemachine.NewSynthesizer(a, 0, refF, nil)
	plans, err := s0.Closures(scopes)
	require.NoError(t, err)
	_, set := a.Commit(plans[0])
	a.SetMethodCounters(methodF, s0.Counters())
	assert.Equal(t, "<>c__DisplayClass0_0", a.Type(set.Type).Name)
	assert.Equal(t, []string{".ctor", "a", "<F>b__0_0"}, set.Names(a))

	gen1 := a.Clone()
	scopes[0].Position = 12
	scopes[0].Captures = append(scopes[0].Captures, statemachine.Capture{Name: "b", Type: "string"})
	scopes[0].Lambdas = append(scopes[0].Lambdas, statemachine.Lambda{Position: 50, Signature: "string"})
	scopes = append(scopes, statemachine.ClosureShape{Position: 70, Parent: 0, Captures: []statemachine.Capture{{Name: "c", Type: "int"}}})
	s1 := statemachine.NewSynthesizer(gen1, 1, refF, locals.PairMap{12: 10, 32: 30})
	scopes[0].Lambdas[0].Position = 32
	plans, err = s1.Closures(scopes)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	outer, outerSet := gen1.Commit(plans[0])
	inner, innerSet := gen1.Commit(plans[1])

	assert.Equal(t, set.Type, outer)
	assert.Equal(t, []string{".ctor", "a", "b", "<F>b__0_0", "<F>b__0_1#1"}, outerSet.Names(gen1))
	assert.Equal(t, "<>c__DisplayClass0_1#1", gen1.Type(inner).Name)
	assert.Equal(t, []string{".ctor", "CS$<>8__locals0", "c"}, innerSet.Names(gen1))
	assert.Equal(t, statemachine.MethodCounters{Lambda: 2, Closure: 2}, s1.Counters())
}

func TestCapturedVariableTypeChangeAddsReplacement(t *testing.T) {
	a := statemachine.NewArena(0)
	scope := statemachine.ClosureShape{Position: 10, Parent: -1, Captures: []statemachine.Capture{{Name: "a", Type: "int"}}}
	plans, err := statemachine.NewSynthesizer(a, 0, refF, nil).Closures([]statemachine.ClosureShape{scope})
	require.NoError(t, err)
	a.Commit(plans[0])

	gen1 := a.Clone()
	scope.Captures[0].Type = "long"
	plans, err = statemachine.NewSynthesizer(gen1, 1, refF, nil).Closures([]statemachine.ClosureShape{scope})
	require.NoError(t, err)
	_, set := gen1.Commit(plans[0])
	assert.Equal(t, []string{".ctor", "a#1", "a"}, set.Names(gen1))
	assert.Len(t, set.Retained, 1)

	gen2 := gen1.Clone()
	plans, err = statemachine.NewSynthesizer(gen2, 2, refF, nil).Closures([]statemachine.ClosureShape{scope})
	require.NoError(t, err)
	assert.Empty(t, plans[0].Added)
}

func TestDuplicateCaptureIsAConflict(t *testing.T) {
	a := statemachine.NewArena(0)
	scope := statemachine.ClosureShape{Position: 10, Parent: -1, Captures: []statemachine.Capture{
		{Name: "a", Type: "int"},
		{Name: "a", Type: "long"},
	}}
	_, err := statemachine.NewSynthesizer(a, 0, refF, nil).Closures([]statemachine.ClosureShape{scope})
	var conflict *statemachine.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "a", conflict.Member)
}

func TestStaticLambdasAccumulateInTheSharedCache(t *testing.T) {
	a := statemachine.NewArena(0)
	refG := statemachine.MethodRef{Key: "C.G()", Name: "G", Ordinal: 1, Container: "C"}

	sf := statemachine.NewSynthesizer(a, 0, refF, nil)
	plan, err := sf.StaticLambdas([]statemachine.Lambda{{Position: 5, Signature: "int"}})
	cache, _ := commit(t, a, plan, err)
	a.SetMethodCounters(methodF, sf.Counters())

	sg := statemachine.NewSynthesizer(a, 0, refG, nil)
	plan, err = sg.StaticLambdas([]statemachine.Lambda{{Position: 9, Signature: "string"}})
	again, set := commit(t, a, plan, err)
	assert.Equal(t, cache, again)
	assert.Equal(t, []string{"<>9", ".cctor", ".ctor", "<G>b__1_0", "<>9__1_0", "<F>b__0_0", "<>9__0_0"}, set.Names(a))

	// F drops its lambda in generation 1: G's members stay active, F's are retained
	gen1 := a.Clone()
	plan, err = statemachine.NewSynthesizer(gen1, 1, refF, nil).StaticLambdas(nil)
	_, set = commit(t, gen1, plan, err)
	assert.Equal(t, []string{"<>9", ".cctor", ".ctor", "<G>b__1_0", "<>9__1_0", "<F>b__0_0", "<>9__0_0"}, set.Names(gen1))
	assert.Len(t, set.Retained, 2)
}

func TestDynamicContainersAreNeverReused(t *testing.T) {
	a := statemachine.NewArena(0)
	sites := []statemachine.DynamicSite{{Position: 4, Type: "CallSite<Func<CallSite, object, object>>"}}

	plan, err := statemachine.NewSynthesizer(a, 0, refF, nil).Dynamic(sites)
	first, _ := commit(t, a, plan, err)
	plan, err = statemachine.NewSynthesizer(a, 1, refF, nil).Dynamic(sites)
	second, set := commit(t, a, plan, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "<>o__0", a.Type(first).Name)
	assert.Equal(t, "<>o__0#1", a.Type(second).Name)
	assert.Equal(t, []string{"<>p__0"}, set.Names(a))

	_, err = statemachine.NewSynthesizer(a, 1, refF, nil).Dynamic(sites)
	assert.Error(t, err)
}

func TestAnonymousTemplatesAreSharedByShape(t *testing.T) {
	a := statemachine.NewArena(0)
	shape := statemachine.AnonymousShape{Members: []statemachine.AnonymousMember{{Name: "A", Type: "int"}, {Name: "B", Type: "string"}}}

	_, plan := statemachine.Anonymous(a, 0, shape)
	require.NotNil(t, plan)
	id, set := a.Commit(plan)
	assert.Equal(t, "<>f__AnonymousType0", a.Type(id).Name)
	assert.Equal(t, []string{"<A>i__Field", "<B>i__Field"}, set.FieldNames(a))

	reused, plan := statemachine.Anonymous(a, 1, shape)
	assert.Nil(t, plan)
	assert.Equal(t, id, reused)

	swapped := statemachine.AnonymousShape{Members: []statemachine.AnonymousMember{shape.Members[1], shape.Members[0]}}
	_, plan = statemachine.Anonymous(a, 1, swapped)
	require.NotNil(t, plan)
	assert.Equal(t, "<>f__AnonymousType1", plan.NewType.Name)
}

func TestCloneIsIndependent(t *testing.T) {
	base, id := asyncBaseline(t, hoisted("<x>5__1", "int", 11))
	next := base.Clone()
	next.Member(next.FindMember(id, "<x>5__1")).Active = false
	next.NewMember(statemachine.Member{Owner: id, Name: "<z>5__9"})

	assert.True(t, base.Member(base.FindMember(id, "<x>5__1")).Active)
	assert.Equal(t, statemachine.NoMemberID, base.FindMember(id, "<z>5__9"))
	assert.Equal(t, base.MemberCount()+1, next.MemberCount())
}

func TestExportImportRoundTrip(t *testing.T) {
	base, id := asyncBaseline(t, hoisted("<x>5__1", "int", 11))
	base.SetMethodCounters(methodF, statemachine.MethodCounters{Lambda: 3})

	restored, err := statemachine.ImportArena(base.Export())
	require.NoError(t, err)
	assert.Equal(t, base.TypeCount(), restored.TypeCount())
	assert.Equal(t, base.MemberCount(), restored.MemberCount())
	assert.Equal(t, id, restored.StateMachineOf(methodF))
	assert.Equal(t, 3, restored.MethodCounters(methodF).Lambda)
	assert.True(t, restored.FindMember(id, "<x>5__1").IsValid())
}
