package diag

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatShort(t *testing.T) {
	diags := []Diagnostic{
		NewError(EncSyntaxMapOutOfRange, AtPosition("C.G()", 90), "position 90\nbeyond body").
			WithNote(At("C"), "containing type"),
		NewError(EncMissingStateMachineAttribute, At("C.F()"), "cannot update 'C.F()'; attribute 'X' is missing"),
	}

	expected := "error ENC1006 C.F() cannot update 'C.F()'; attribute 'X' is missing\n" +
		"error ENC1005 C.G()@90 position 90 beyond body\n" +
		"note ENC1005 C containing type"
	assert.Equal(t, expected, FormatShort(diags, true))
	assert.NotContains(t, FormatShort(diags, false), "note")
}

func TestBagLimitAndDedup(t *testing.T) {
	bag := NewBag(2)
	r := NewDedupReporter(BagReporter{Bag: bag})
	ReportError(r, EncMissingContainer, At("C.X()"), "no C").Emit()
	ReportError(r, EncMissingContainer, At("C.X()"), "no C").Emit()
	b := ReportError(r, EncDuplicateEdit, At("C.Y()"), "dup")
	b.Emit()
	b.Emit()
	ReportError(r, EncUnknownSymbol, At("C.Z()"), "unknown").Emit()

	require.Equal(t, 2, bag.Len())
	assert.True(t, bag.HasErrors())
	assert.True(t, bag.HasID("ENC1007"))
	assert.True(t, bag.HasID("ENC1002"))
	assert.False(t, bag.HasID("ENC1001"))
	assert.False(t, (*Bag)(nil).HasID("ENC1001"))
}

func TestSortOrdersBySubject(t *testing.T) {
	bag := NewBag(0)
	bag.Add(Diagnostic{Severity: SevWarning, Code: EncInfo, Primary: At("B")})
	bag.Add(NewError(EncUnknownSymbol, AtPosition("A", 9), "x"))
	bag.Add(NewError(EncMissingBody, At("B"), "y"))
	bag.Add(NewError(EncUnknownSymbol, AtPosition("A", 2), "z"))
	bag.Sort()

	var got []string
	for _, d := range bag.Items() {
		got = append(got, d.Primary.String()+" "+d.Code.ID())
	}
	assert.Equal(t, []string{"A@2 ENC1001", "A@9 ENC1001", "B ENC1011", "B ENC1000"}, got)
}

func TestCodeIDs(t *testing.T) {
	tests := map[Code]string{
		EncMissingStateMachineAttribute: "ENC1006",
		ChnStoreFailure:                 "CHN2002",
		IOLoadFileError:                 "IO4001",
		PrjManifestInvalid:              "PRJ5001",
		UnknownCode:                     "E0000",
		Code(3001):                      "E0000",
	}
	for code, want := range tests {
		assert.Equal(t, want, code.ID(), "code %d", code)
	}
	assert.Equal(t, "[PRJ5002]: Invalid scenario file", PrjScenarioInvalid.String())
	assert.Equal(t, "Unknown error", Code(4999).Title())
}

func TestFailureCarriesDiagnostic(t *testing.T) {
	err := Errorf(PrjManifestInvalid, At("encdelta.toml"), "[emit].jobs: %w", fs.ErrInvalid)
	assert.Equal(t, "PRJ5001 encdelta.toml: [emit].jobs: invalid argument", err.Error())
	assert.ErrorIs(t, err, fs.ErrInvalid)

	wrapped := fmt.Errorf("replay: %w", err)
	d, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, PrjManifestInvalid, d.Code)

	d, ok = As(fmt.Errorf("x: %w", NewError(EncMissingBody, At("C.F()"), "no body")))
	require.True(t, ok)
	assert.Equal(t, EncMissingBody, d.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
	assert.NoError(t, Wrap(IOLoadFileError, At("x"), nil))
}
