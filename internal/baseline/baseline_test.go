package baseline_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encdelta/internal/baseline"
	"encdelta/internal/diag"
	"encdelta/internal/locals"
	"encdelta/internal/meta"
	"encdelta/internal/statemachine"
	"encdelta/internal/symbols"
)

var mvid = uuid.MustParse("7b0a2b8c-59e6-4f1a-9a63-4c5c0e4b9d11")

func sampleModule() baseline.Module {
	var sizes meta.TableSizes
	sizes.Set(meta.TableTypeDef, 3)
	sizes.Set(meta.TableMethodDef, 4)
	sizes.Set(meta.TableField, 3)
	sizes.Set(meta.TableStandAloneSig, 1)
	sizes.Set(meta.TableMemberRef, 5)
	sizes.Set(meta.TableParam, 1)
	return baseline.Module{
		MVID:  mvid,
		Sizes: sizes,
		Types: []baseline.TypeDef{{Key: "C", Row: 2}},
		Methods: []baseline.MethodDef{
			{Key: "C.F()", Container: "C", Name: "F", Row: 1, Digest: symbols.HashBody("F"), SignatureRow: 1},
			{Key: "C.G(int)", Container: "C", Name: "G", Ordinal: 1, Row: 2, Params: []meta.RowID{1}, StateMachine: statemachine.TypeAsync},
		},
		Members: []baseline.MemberDef{{Kind: symbols.KindField, Key: "C.f", Container: "C", Row: 1}},
		References: []baseline.ReferenceDef{
			{Table: meta.TableMemberRef, Key: "System.Console.WriteLine(int)", Row: 5},
		},
		Synthesized: []baseline.SynthesizedType{{
			Kind:      statemachine.TypeAsync,
			Name:      "<G>d__1",
			Container: "C",
			Method:    "C.G(int)",
			Row:       3,
			Members: []baseline.SynthesizedMember{
				{Role: statemachine.RoleStateOrdinal, Name: "<>1__state", Type: "int", Row: 2},
				{Role: statemachine.RoleHoistedLocal, Name: "<x>5__4", Type: "int", Position: 7, HasPosition: true, Row: 3},
				{Role: statemachine.RoleHelperMethod, Kind: statemachine.MemberMethod, Name: "MoveNext", Row: 4},
			},
		}},
	}
}

func provider(sigs map[string]locals.Signature) baseline.LocalsProvider {
	return func(key string) (locals.Signature, bool) {
		sig, ok := sigs[key]
		return sig, ok
	}
}

func TestInitial(t *testing.T) {
	sig := locals.NewSignature(locals.Descriptor{Kind: locals.KindUserDefined, Type: "int", Position: 11, Name: "i"})
	g, err := baseline.Initial(sampleModule(), provider(map[string]locals.Signature{"C.F()": sig}))
	require.NoError(t, err)

	assert.Equal(t, 0, g.Ordinal())
	assert.Equal(t, mvid, g.EncID())
	assert.Equal(t, uuid.Nil, g.BaseID())

	got, ok := g.LocalSignature("C.F()")
	require.True(t, ok)
	assert.True(t, got.Equal(sig))
	_, ok = g.LocalSignature("C.G(int)")
	assert.False(t, ok)

	h, ok := g.Reference(meta.TableMemberRef, "System.Console.WriteLine(int)")
	require.True(t, ok)
	assert.Equal(t, meta.MakeHandle(meta.TableMemberRef, 5), h)
	assert.True(t, g.IsDefined("C.f"))
	assert.True(t, g.IsDefined("C.G(int)"))

	sm := g.Arena().StateMachineOf("C.G(int)")
	require.True(t, sm.IsValid())
	assert.Equal(t, 4, g.Arena().Type(sm).Counters.Hoisted, "counters are seeded from emitted names")
	assert.Equal(t, []string{"<>1__state", "<x>5__4", "MoveNext"}, g.MemberSet(sm).Names(g.Arena()))
}

func TestInitialRejectsRowsOutsideTables(t *testing.T) {
	mod := sampleModule()
	mod.Methods[0].Row = 9
	_, err := baseline.Initial(mod, nil)
	var modErr *baseline.ModuleError
	require.True(t, errors.As(err, &modErr))
	assert.Equal(t, "C.F()", modErr.Key)

	mod = sampleModule()
	mod.References[0].Table = meta.TableTypeDef
	_, err = baseline.Initial(mod, nil)
	assert.Error(t, err)

	mod = sampleModule()
	mod.Members = append(mod.Members, baseline.MemberDef{Kind: symbols.KindField, Key: "C", Container: "C", Row: 2})
	_, err = baseline.Initial(mod, nil)
	assert.ErrorContains(t, err, "declared twice")
}

func TestDeriveLeavesPreviousUntouched(t *testing.T) {
	g0, err := baseline.Initial(sampleModule(), nil)
	require.NoError(t, err)

	sizes := g0.Sizes()
	sizes.Set(meta.TableMethodDef, 5)
	sizes.Set(meta.TableStandAloneSig, 2)
	sig := locals.NewSignature(locals.Descriptor{Type: "int", Position: 3})
	g1, err := baseline.Derive(g0, baseline.Changes{
		Sizes: sizes,
		Methods: []baseline.MethodInfo{
			{Key: "C.H()", Container: "C", Name: "H", Handle: meta.MakeHandle(meta.TableMethodDef, 5), Signature: sig, HasSignature: true, SignatureRow: 2},
		},
		References: map[string]meta.Handle{
			baseline.ReferenceKey(meta.TableTypeRef, "System.Object"): meta.MakeHandle(meta.TableTypeRef, 1),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, g1.Ordinal())
	assert.Equal(t, g0.EncID(), g1.BaseID())
	assert.NotEqual(t, g0.EncID(), g1.EncID())
	assert.True(t, g1.IsDefined("C.H()"))
	assert.False(t, g0.IsDefined("C.H()"))
	assert.Equal(t, uint32(4), g0.Sizes().Get(meta.TableMethodDef))
	assert.Equal(t, []*baseline.Generation{g0, g1}, g1.Chain())
	assert.Same(t, g0.Arena(), g1.Arena(), "no arena change keeps the previous arena")

	again, err := baseline.Derive(g0, baseline.Changes{Sizes: sizes})
	require.NoError(t, err)
	assert.Equal(t, g1.EncID(), again.EncID(), "generation ids are derived deterministically")
}

func TestDeriveRejectsShrinkingTables(t *testing.T) {
	g0, err := baseline.Initial(sampleModule(), nil)
	require.NoError(t, err)
	sizes := g0.Sizes()
	sizes.Set(meta.TableMethodDef, 1)

	_, err = baseline.Derive(g0, baseline.Changes{Sizes: sizes})
	var violation *meta.AppendOnlyViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, meta.TableMethodDef, violation.Handle.Table)
}

func TestSnapshotRoundTrip(t *testing.T) {
	sig := locals.NewSignature(locals.Descriptor{Type: "int", Position: 11})
	g0, err := baseline.Initial(sampleModule(), provider(map[string]locals.Signature{"C.F()": sig}))
	require.NoError(t, err)
	sizes := g0.Sizes()
	sizes.Set(meta.TableMethodDef, 5)
	g1, err := baseline.Derive(g0, baseline.Changes{
		Sizes:   sizes,
		Methods: []baseline.MethodInfo{{Key: "C.H()", Handle: meta.MakeHandle(meta.TableMethodDef, 5)}},
	})
	require.NoError(t, err)

	restored, err := baseline.RestoreChain([]baseline.Snapshot{g0.Snapshot(), g1.Snapshot()}, nil)
	require.NoError(t, err)
	assert.Equal(t, g1.EncID(), restored.EncID())
	assert.Equal(t, g1.Sizes(), restored.Sizes())
	assert.Equal(t, g1.MethodKeys(), restored.MethodKeys())
	got, ok := restored.LocalSignature("C.F()")
	require.True(t, ok, "provider signatures are captured by the snapshot")
	assert.True(t, got.Equal(sig))
	assert.Equal(t, g1.Arena().MemberCount(), restored.Arena().MemberCount())

	_, err = baseline.RestoreChain([]baseline.Snapshot{g1.Snapshot()}, nil)
	d, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, diag.ChnGenerationMismatch, d.Code)
}
