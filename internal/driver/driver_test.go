package driver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encdelta/internal/baseline"
	"encdelta/internal/diag"
	"encdelta/internal/driver"
	"encdelta/internal/locals"
	"encdelta/internal/meta"
	"encdelta/internal/statemachine"
	"encdelta/internal/symbols"
)

const (
	writeLine       = "System.Console.WriteLine(int)"
	asyncBuilder    = "System.Runtime.CompilerServices.AsyncTaskMethodBuilder<int>"
	intAwaiter      = "System.Runtime.CompilerServices.TaskAwaiter<int>"
	setStateMachine = "System.Runtime.CompilerServices.IAsyncStateMachine.SetStateMachine"
)

// asyncRuntime is the well-known attribute set of a runtime that supports async methods.
var asyncRuntime = []string{statemachine.AsyncStateMachineAttribute}

func user(typ, name string, pos locals.Position) locals.Descriptor {
	return locals.Descriptor{Kind: locals.KindUserDefined, Type: typ, Name: name, Position: pos}
}

// generation0 is a module with a plain method C.F() and an async method C.G()
// whose state machine <G>d__1 was emitted with it.
func generation0(t *testing.T) *baseline.Generation {
	t.Helper()
	var sizes meta.TableSizes
	sizes.Set(meta.TableTypeDef, 3)
	sizes.Set(meta.TableMethodDef, 5)
	sizes.Set(meta.TableField, 5)
	sizes.Set(meta.TableStandAloneSig, 2)
	sizes.Set(meta.TableMemberRef, 5)

	sigs := map[string]locals.Signature{
		"C.F()": locals.NewSignature(user("int", "i", 11)),
		"C.G()": locals.NewSignature(user("int", "y", 40)),
	}
	provider := func(key string) (locals.Signature, bool) {
		sig, ok := sigs[key]
		return sig, ok
	}

	g0, err := baseline.Initial(baseline.Module{
		MVID:  uuid.MustParse("0c9b2f4e-1111-4000-8000-00000000c0de"),
		Sizes: sizes,
		Types: []baseline.TypeDef{{Key: "C", Row: 2}},
		Methods: []baseline.MethodDef{
			{Key: "C.F()", Container: "C", Name: "F", Ordinal: 0, Row: 1, Digest: symbols.HashBody("F0"), BodyLength: 100, SignatureRow: 1},
			{Key: "C.G()", Container: "C", Name: "G", Ordinal: 1, Row: 2, Digest: symbols.HashBody("G0"), BodyLength: 100,
				StateMachine: statemachine.TypeAsync, SignatureRow: 2},
		},
		Members:    []baseline.MemberDef{{Kind: symbols.KindField, Key: "C.f", Container: "C", Row: 5}},
		References: []baseline.ReferenceDef{{Table: meta.TableMemberRef, Key: writeLine, Row: 5}},
		Synthesized: []baseline.SynthesizedType{{
			Kind:          statemachine.TypeAsync,
			Name:          "<G>d__1",
			Container:     "C",
			Method:        "C.G()",
			MethodName:    "G",
			MethodOrdinal: 1,
			Row:           3,
			Members: []baseline.SynthesizedMember{
				{Role: statemachine.RoleStateOrdinal, Kind: statemachine.MemberField, Name: "<>1__state", Type: "int", Row: 1},
				{Role: statemachine.RoleBuilder, Kind: statemachine.MemberField, Name: "<>t__builder", Type: asyncBuilder, Row: 2},
				{Role: statemachine.RoleHoistedLocal, Kind: statemachine.MemberField, Name: "<x>5__1", Type: "int", Position: 20, HasPosition: true, Row: 3},
				{Role: statemachine.RoleAwaiter, Kind: statemachine.MemberField, Name: "<>u__1", Type: intAwaiter, Position: 30, HasPosition: true, Row: 4},
				{Role: statemachine.RoleHelperMethod, Kind: statemachine.MemberMethod, Name: ".ctor", Row: 3},
				{Role: statemachine.RoleHelperMethod, Kind: statemachine.MemberMethod, Name: "MoveNext", Row: 4},
				{Role: statemachine.RoleHelperMethod, Kind: statemachine.MemberMethod, Name: setStateMachine, Params: 1, Row: 5},
			},
		}},
	}, provider)
	require.NoError(t, err)
	return g0
}

func typeC() *symbols.Symbol {
	return &symbols.Symbol{Kind: symbols.KindType, Key: "C", Name: "C"}
}

func methodF(body *symbols.Body) *symbols.Symbol {
	return &symbols.Symbol{Kind: symbols.KindMethod, Key: "C.F()", Name: "F", Container: "C", Ordinal: 0, Body: body}
}

func methodG(digest string) *symbols.Symbol {
	return &symbols.Symbol{Kind: symbols.KindMethod, Key: "C.G()", Name: "G", Container: "C", Ordinal: 1, Body: &symbols.Body{
		Length:     100,
		Digest:     symbols.HashBody(digest),
		Locals:     []locals.Descriptor{user("int", "y", 40)},
		References: []symbols.Reference{{Table: meta.TableMemberRef, Key: writeLine}},
		StateMachine: &statemachine.StateMachineShape{
			Kind:        statemachine.TypeAsync,
			ElementType: "int",
			Hoisted:     []locals.Descriptor{user("int", "x", 20)},
			Awaiters:    []statemachine.Awaiter{{Type: intAwaiter, Position: 30, HasPosition: true}},
		},
	}}
}

func compilation(t *testing.T, wellKnown []string, syms ...*symbols.Symbol) *symbols.Compilation {
	t.Helper()
	comp, err := symbols.NewCompilation(wellKnown, append([]*symbols.Symbol{typeC()}, syms...)...)
	require.NoError(t, err)
	return comp
}

func update(key string) driver.SymbolEdit {
	return driver.SymbolEdit{Kind: driver.EditUpdate, OldKey: key, NewKey: key, PreserveLocals: true}
}

func emit(t *testing.T, prev *baseline.Generation, comp *symbols.Compilation, edits ...driver.SymbolEdit) *driver.Result {
	t.Helper()
	res, err := driver.EmitDifference(context.Background(), prev, comp, edits, driver.Options{Jobs: 2})
	require.NoError(t, err)
	return res
}

func rejectCode(t *testing.T, err error) diag.Code {
	t.Helper()
	var rej *driver.RejectError
	require.ErrorAs(t, err, &rej)
	require.NotNil(t, rej.Diagnostics)
	require.True(t, rej.Diagnostics.HasErrors())
	return rej.Diagnostics.Items()[0].Code
}

func TestInsertedLocalKeepsExistingSlot(t *testing.T) {
	g0 := generation0(t)
	comp := compilation(t, asyncRuntime, methodF(&symbols.Body{
		Length: 100,
		Digest: symbols.HashBody("F1"),
		Locals: []locals.Descriptor{user("int", "j", 70), user("int", "i", 11)},
	}))

	res := emit(t, g0, comp, update("C.F()"))

	m := res.Methods["C.F()"]
	assert.Equal(t, []int{1, 0}, m.Slots)
	assert.Equal(t, []string{"[int] V_0", "[int] V_1"}, m.Signature.Lines())
	assert.Equal(t, meta.RowID(3), m.SignatureRow)
	assert.Equal(t, []string{
		"Row(3, TableIndex.StandAloneSig, EditAndContinueOperation.Default)",
		"Row(1, TableIndex.MethodDef, EditAndContinueOperation.Default)",
	}, res.Delta.LogLines())
	assert.Equal(t, []string{
		"Handle(1, TableIndex.MethodDef)",
		"Handle(3, TableIndex.StandAloneSig)",
	}, res.Delta.MapLines())

	assert.Equal(t, 1, res.Delta.Generation)
	assert.Equal(t, g0.EncID(), res.Delta.BaseID)
	info, ok := res.Generation.Method("C.F()")
	require.True(t, ok)
	assert.Equal(t, meta.RowID(3), info.SignatureRow)
}

func TestUnchangedBodyEmitsOnlyMethodRow(t *testing.T) {
	g0 := generation0(t)
	comp := compilation(t, asyncRuntime, methodF(&symbols.Body{
		Length: 100,
		Digest: symbols.HashBody("F0"),
		Locals: []locals.Descriptor{user("int", "i", 11)},
	}))

	res := emit(t, g0, comp, update("C.F()"))

	assert.Equal(t, []string{"Row(1, TableIndex.MethodDef, EditAndContinueOperation.Default)"}, res.Delta.LogLines())
	m := res.Methods["C.F()"]
	base, _ := g0.LocalSignature("C.F()")
	assert.True(t, base.Equal(m.Signature))
	assert.Equal(t, meta.RowID(1), m.SignatureRow)
}

func TestAsyncUpdateReusesStateMachine(t *testing.T) {
	g0 := generation0(t)
	want := []string{
		"Row(2, TableIndex.MethodDef, EditAndContinueOperation.Default)",
		"Row(4, TableIndex.MethodDef, EditAndContinueOperation.Default)",
	}

	g1 := emit(t, g0, compilation(t, asyncRuntime, methodG("G1")), update("C.G()"))
	assert.Equal(t, want, g1.Delta.LogLines())
	assert.Equal(t, "C/<G>d__1", g1.Methods["C.G()"].StateMachine)
	assert.Equal(t, []string{
		"<>1__state", "<>t__builder", ".ctor", "MoveNext", setStateMachine, "<x>5__1", "<>u__1",
	}, g1.MemberNames("C/<G>d__1"))

	g2 := emit(t, g1.Generation, compilation(t, asyncRuntime, methodG("G2")), update("C.G()"))
	assert.Equal(t, want, g2.Delta.LogLines())
	assert.Equal(t, 2, g2.Delta.Generation)
	assert.Equal(t, g1.Delta.EncID, g2.Delta.BaseID)
	assert.Equal(t, g0.Sizes(), g2.Generation.Sizes())
}

func TestMissingAttributeRejectsConversion(t *testing.T) {
	g0 := generation0(t)
	comp := compilation(t, asyncRuntime, methodF(&symbols.Body{
		Length: 100,
		Digest: symbols.HashBody("F-iter"),
		StateMachine: &statemachine.StateMachineShape{
			Kind:        statemachine.TypeIterator,
			ElementType: "int",
			Hoisted:     []locals.Descriptor{user("int", "i", 11)},
		},
	}))

	res, err := driver.EmitDifference(context.Background(), g0, comp, []driver.SymbolEdit{update("C.F()")}, driver.Options{})
	require.Error(t, err)
	assert.Nil(t, res)

	var rej *driver.RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, 1, rej.Generation)
	var missing *statemachine.MissingAttributeError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, statemachine.IteratorStateMachineAttribute, missing.Attribute)
	assert.Equal(t, diag.EncMissingStateMachineAttribute, rejectCode(t, err))

	assert.Equal(t, 0, g0.Ordinal())
	assert.Equal(t, 1, g0.Arena().TypeCount())
}

func TestConversionWithInsertedAttribute(t *testing.T) {
	g0 := generation0(t)
	attr := &symbols.Symbol{Kind: symbols.KindType, Key: statemachine.IteratorStateMachineAttribute, Name: "IteratorStateMachineAttribute"}
	ctor := attributeConstructor(statemachine.IteratorStateMachineAttribute)
	comp := compilation(t, asyncRuntime, attr, ctor, methodF(&symbols.Body{
		Length: 100,
		Digest: symbols.HashBody("F-iter"),
		StateMachine: &statemachine.StateMachineShape{
			Kind:        statemachine.TypeIterator,
			ElementType: "int",
			Hoisted:     []locals.Descriptor{user("int", "i", 11)},
		},
	}))

	res := emit(t, g0, comp,
		driver.SymbolEdit{Kind: driver.EditInsert, NewKey: statemachine.IteratorStateMachineAttribute},
		driver.SymbolEdit{Kind: driver.EditInsert, NewKey: ctor.Key},
		update("C.F()"),
	)

	m := res.Methods["C.F()"]
	assert.Equal(t, "C/<F>d__0#1", m.StateMachine)
	assert.Equal(t, meta.NoRowID, m.SignatureRow)
	memberNames := res.MemberNames("C/<F>d__0#1")
	require.GreaterOrEqual(t, len(memberNames), 4)
	assert.Equal(t, []string{"<>1__state", "<>2__current", "<>l__initialThreadId", ".ctor"}, memberNames[:4])
	assert.Contains(t, memberNames, "<i>5__1")

	d := res.Delta
	assert.Equal(t, 2, d.Added(meta.TableTypeDef))
	assert.Equal(t, 1, d.Added(meta.TableNestedClass))
	assert.Equal(t, 5, d.Added(meta.TableInterfaceImpl))
	assert.Equal(t, 4, d.Added(meta.TableField))
	assert.Equal(t, 9, d.Added(meta.TableMethodDef))
	// the state machine .ctor and the attribute .ctor
	assert.Equal(t, 2, d.Added(meta.TableParam))
	assert.Equal(t, 7, d.Added(meta.TableMethodImpl))
	assert.Equal(t, 1, d.Added(meta.TablePropertyMap))
	assert.Equal(t, 2, d.Added(meta.TableProperty))
	assert.Equal(t, 2, d.Added(meta.TableMethodSemantics))
	// CompilerGenerated on the type and the iterator attribute on F
	assert.Equal(t, 2, d.Added(meta.TableCustomAttribute))
	assert.Equal(t, []meta.Handle{meta.MakeHandle(meta.TableMethodDef, 1)}, d.Updated())

	assert.True(t, res.Generation.IsDefined(statemachine.IteratorStateMachineAttribute))
	assert.Equal(t, 2, res.Generation.Arena().TypeCount())
}

func attributeConstructor(attr string) *symbols.Symbol {
	return &symbols.Symbol{Kind: symbols.KindMethod, Key: statemachine.AttributeConstructor(attr), Name: ".ctor",
		Container: attr, Params: []string{"stateMachineType"}}
}

func TestInsertedAttributeNeedsTypeConstructor(t *testing.T) {
	iterator := methodF(&symbols.Body{
		Length: 100,
		Digest: symbols.HashBody("F-iter"),
		StateMachine: &statemachine.StateMachineShape{
			Kind:        statemachine.TypeIterator,
			ElementType: "int",
			Hoisted:     []locals.Descriptor{user("int", "i", 11)},
		},
	})
	attrKey := statemachine.IteratorStateMachineAttribute
	attr := &symbols.Symbol{Kind: symbols.KindType, Key: attrKey, Name: "IteratorStateMachineAttribute"}
	parameterless := &symbols.Symbol{Kind: symbols.KindMethod, Key: attrKey + "..ctor()", Name: ".ctor", Container: attrKey}

	tests := []struct {
		name  string
		syms  []*symbols.Symbol
		edits []driver.SymbolEdit
	}{
		{
			name:  "no constructor",
			syms:  []*symbols.Symbol{attr, iterator},
			edits: []driver.SymbolEdit{{Kind: driver.EditInsert, NewKey: attrKey}, update("C.F()")},
		},
		{
			name: "parameterless constructor",
			syms: []*symbols.Symbol{attr, parameterless, iterator},
			edits: []driver.SymbolEdit{
				{Kind: driver.EditInsert, NewKey: attrKey},
				{Kind: driver.EditInsert, NewKey: parameterless.Key},
				update("C.F()"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g0 := generation0(t)
			_, err := driver.EmitDifference(context.Background(), g0, compilation(t, asyncRuntime, tt.syms...), tt.edits, driver.Options{})
			var missing *statemachine.MissingAttributeError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, attrKey, missing.Attribute)
			assert.Equal(t, diag.EncMissingStateMachineAttribute, rejectCode(t, err))
		})
	}
}

func TestAsyncUpdateNeedsAttribute(t *testing.T) {
	g0 := generation0(t)
	_, err := driver.EmitDifference(context.Background(), g0, compilation(t, nil, methodG("G1")),
		[]driver.SymbolEdit{update("C.G()")}, driver.Options{})

	var missing *statemachine.MissingAttributeError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "C.G()", missing.Method)
	assert.Equal(t, statemachine.AsyncStateMachineAttribute, missing.Attribute)
	assert.Equal(t, diag.EncMissingStateMachineAttribute, rejectCode(t, err))
}

func TestAsyncResultTypeChangeReplacesBuilder(t *testing.T) {
	g0 := generation0(t)
	g := methodG("G-long")
	g.Body.StateMachine.ElementType = "long"

	res := emit(t, g0, compilation(t, asyncRuntime, g), update("C.G()"))

	assert.Equal(t, "C/<G>d__1", res.Methods["C.G()"].StateMachine)
	assert.Equal(t, []string{
		"<>1__state", "<>t__builder#1", ".ctor", "MoveNext", setStateMachine, "<x>5__1", "<>u__1", "<>t__builder",
	}, res.MemberNames("C/<G>d__1"))
	assert.Equal(t, 1, res.Delta.Added(meta.TableField))
	assert.Equal(t, 0, res.Delta.Added(meta.TableTypeDef))
}

func TestInsertMethodWithParameter(t *testing.T) {
	g0 := generation0(t)
	h := &symbols.Symbol{Kind: symbols.KindMethod, Key: "C.H(int)", Name: "H", Container: "C", Ordinal: 2, Params: []string{"x"},
		Body: &symbols.Body{
			Length: 10,
			Digest: symbols.HashBody("H0"),
			Locals: []locals.Descriptor{user("int", "a", 1)},
			References: []symbols.Reference{
				{Table: meta.TableMemberRef, Key: writeLine},
				{Table: meta.TableMemberRef, Key: "System.Math.Abs(int)"},
			},
		}}
	comp := compilation(t, asyncRuntime, h)

	res := emit(t, g0, comp, driver.SymbolEdit{Kind: driver.EditInsert, NewKey: "C.H(int)"})

	assert.Equal(t, []string{
		"Row(6, TableIndex.MemberRef, EditAndContinueOperation.Default)",
		"Row(3, TableIndex.StandAloneSig, EditAndContinueOperation.Default)",
		"Row(2, TableIndex.TypeDef, EditAndContinueOperation.AddMethod)",
		"Row(6, TableIndex.MethodDef, EditAndContinueOperation.Default)",
		"Row(6, TableIndex.MethodDef, EditAndContinueOperation.AddParameter)",
		"Row(1, TableIndex.Param, EditAndContinueOperation.Default)",
	}, res.Delta.LogLines())

	info, ok := res.Generation.Method("C.H(int)")
	require.True(t, ok)
	assert.Equal(t, meta.MakeHandle(meta.TableMethodDef, 6), info.Handle)
	assert.Equal(t, []meta.Handle{meta.MakeHandle(meta.TableParam, 1)}, info.Params)
	ref, ok := res.Generation.Reference(meta.TableMemberRef, "System.Math.Abs(int)")
	require.True(t, ok)
	assert.Equal(t, meta.RowID(6), ref.Row)
}

func TestStaticLambdaBodyIsUpdatedWithItsMethod(t *testing.T) {
	g0 := generation0(t)
	body := &symbols.Body{
		Length:  100,
		Digest:  symbols.HashBody("F-lambda"),
		Locals:  []locals.Descriptor{user("int", "i", 11)},
		Lambdas: []statemachine.Lambda{{Position: 50, Signature: "System.Func<int>"}},
	}
	comp := compilation(t, asyncRuntime, methodF(body))

	g1 := emit(t, g0, comp, update("C.F()"))
	assert.ElementsMatch(t, []string{"<>9", ".cctor", ".ctor", "<F>b__0_0#1", "<>9__0_0#1"}, g1.MemberNames("C/<>c"))
	assert.Equal(t, 1, g1.Delta.Added(meta.TableTypeDef))
	assert.Equal(t, 3, g1.Delta.Added(meta.TableMethodDef))

	g2 := emit(t, g1.Generation, comp, update("C.F()"))
	assert.Equal(t, []meta.Handle{
		meta.MakeHandle(meta.TableMethodDef, 1),
		meta.MakeHandle(meta.TableMethodDef, 8),
	}, g2.Delta.Updated())
	assert.Equal(t, 0, g2.Delta.Added(meta.TableMethodDef))
	assert.ElementsMatch(t, g1.MemberNames("C/<>c"), g2.MemberNames("C/<>c"))
}

func TestRejectsMalformedEdits(t *testing.T) {
	bodyF := &symbols.Body{Length: 100, Digest: symbols.HashBody("F1"), Locals: []locals.Descriptor{user("int", "i", 11)}}
	renamed := &symbols.Symbol{Kind: symbols.KindMethod, Key: "C.F2()", Name: "F2", Container: "C", Body: bodyF}
	field := &symbols.Symbol{Kind: symbols.KindField, Key: "C.f", Name: "f", Container: "C", Type: "int"}

	tests := []struct {
		name  string
		syms  []*symbols.Symbol
		edits []driver.SymbolEdit
		code  diag.Code
	}{
		{
			name:  "rename",
			syms:  []*symbols.Symbol{methodF(bodyF), renamed},
			edits: []driver.SymbolEdit{{Kind: driver.EditUpdate, OldKey: "C.F()", NewKey: "C.F2()"}},
			code:  diag.EncRenameNotSupported,
		},
		{
			name:  "unknown",
			syms:  []*symbols.Symbol{methodF(bodyF)},
			edits: []driver.SymbolEdit{update("C.Z()")},
			code:  diag.EncUnknownSymbol,
		},
		{
			name:  "duplicate",
			syms:  []*symbols.Symbol{methodF(bodyF)},
			edits: []driver.SymbolEdit{update("C.F()"), update("C.F()")},
			code:  diag.EncDuplicateEdit,
		},
		{
			name:  "insert existing",
			syms:  []*symbols.Symbol{methodF(bodyF)},
			edits: []driver.SymbolEdit{{Kind: driver.EditInsert, NewKey: "C.F()"}},
			code:  diag.EncAlreadyDefined,
		},
		{
			name:  "field update",
			syms:  []*symbols.Symbol{field},
			edits: []driver.SymbolEdit{update("C.f")},
			code:  diag.EncUnsupportedEdit,
		},
		{
			name: "syntax map outside old body",
			syms: []*symbols.Symbol{methodF(bodyF)},
			edits: []driver.SymbolEdit{{
				Kind: driver.EditUpdate, OldKey: "C.F()", NewKey: "C.F()",
				SyntaxMap: locals.MapFunc(func(p locals.Position) (locals.Position, bool) { return p + 500, true }),
			}},
			code: diag.EncSyntaxMapOutOfRange,
		},
		{
			name:  "position outside new body",
			syms:  []*symbols.Symbol{methodF(&symbols.Body{Length: 10, Locals: []locals.Descriptor{user("int", "i", 11)}})},
			edits: []driver.SymbolEdit{update("C.F()")},
			code:  diag.EncPositionOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g0 := generation0(t)
			comp := compilation(t, asyncRuntime, tt.syms...)
			_, err := driver.EmitDifference(context.Background(), g0, comp, tt.edits, driver.Options{})
			require.Error(t, err)
			var editErr *driver.EditError
			require.ErrorAs(t, err, &editErr)
			assert.Equal(t, tt.code, rejectCode(t, err))
		})
	}
}

func TestEmitIsDeterministic(t *testing.T) {
	g0 := generation0(t)
	before := g0.Sizes()
	comp := compilation(t, asyncRuntime,
		methodF(&symbols.Body{Length: 100, Digest: symbols.HashBody("F1"), Locals: []locals.Descriptor{user("int", "j", 70), user("int", "i", 11)}}),
		methodG("G1"),
	)
	edits := []driver.SymbolEdit{update("C.F()"), update("C.G()")}

	a := emit(t, g0, comp, edits...)
	b := emit(t, g0, comp, edits...)
	assert.Equal(t, a.Delta.LogLines(), b.Delta.LogLines())
	assert.Equal(t, a.Delta.MapLines(), b.Delta.MapLines())
	assert.Equal(t, a.Delta.EncID, b.Delta.EncID)
	assert.Equal(t, before, g0.Sizes())
	assert.Equal(t, 0, g0.Ordinal())
}

func TestCanceledContextIsNotARejection(t *testing.T) {
	g0 := generation0(t)
	comp := compilation(t, asyncRuntime, methodG("G1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := driver.EmitDifference(ctx, g0, comp, []driver.SymbolEdit{update("C.G()")}, driver.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	var rej *driver.RejectError
	assert.False(t, errors.As(err, &rej))
}

func TestTimingsCoverStages(t *testing.T) {
	g0 := generation0(t)
	res := emit(t, g0, compilation(t, asyncRuntime, methodG("G1")), update("C.G()"))
	var got []string
	for _, p := range res.Timings.Phases {
		got = append(got, p.Name)
	}
	assert.Equal(t, []string{"validate", "attribute-gate", "allocate", "commit", "build", "derive"}, got)
	alloc, ok := res.Timings.Phase("allocate")
	require.True(t, ok)
	assert.Equal(t, 1, alloc.Methods)
}
