// Package scenario reads TOML scenario files: a baseline module description
// followed by generations of edits, each with optional expectations. The CLI
// replays them and package tests use them as fixtures.
package scenario

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"

	"encdelta/internal/diag"
)

// File is a decoded scenario.
type File struct {
	Path        string           `toml:"-"`
	Name        string           `toml:"name"`
	MVID        string           `toml:"mvid"`
	WellKnown   []string         `toml:"well_known"`
	Baseline    BaselineSpec     `toml:"baseline"`
	Generations []GenerationSpec `toml:"generation"`
}

// BaselineSpec describes generation 0.
type BaselineSpec struct {
	Sizes        map[string]uint32 `toml:"sizes"`
	Types        []TypeSpec        `toml:"types"`
	Methods      []MethodSpec      `toml:"methods"`
	Members      []MemberSpec      `toml:"members"`
	References   []ReferenceSpec   `toml:"references"`
	PropertyMaps []MapSpec         `toml:"property_maps"`
	EventMaps    []MapSpec         `toml:"event_maps"`
	Synthesized  []SynthTypeSpec   `toml:"synthesized"`
}

type TypeSpec struct {
	Key       string `toml:"key"`
	Container string `toml:"container"`
	Row       uint32 `toml:"row"`
}

// MethodSpec is a generation-0 method. Locals is its signature as the debug
// information reports it; Body is hashed into the body digest.
type MethodSpec struct {
	Key          string      `toml:"key"`
	Container    string      `toml:"container"`
	Name         string      `toml:"name"`
	Ordinal      int         `toml:"ordinal"`
	Row          uint32      `toml:"row"`
	Body         string      `toml:"body"`
	Length       uint32      `toml:"length"`
	StateMachine string      `toml:"state_machine"`
	SignatureRow uint32      `toml:"signature_row"`
	Params       []uint32    `toml:"params"`
	Locals       []LocalSpec `toml:"locals"`
}

type LocalSpec struct {
	Kind   string `toml:"kind"`
	Type   string `toml:"type"`
	Name   string `toml:"name"`
	Pos    uint32 `toml:"pos"`
	Unused bool   `toml:"unused"`
}

type MemberSpec struct {
	Kind      string `toml:"kind"`
	Key       string `toml:"key"`
	Container string `toml:"container"`
	Row       uint32 `toml:"row"`
}

// ReferenceSpec is a reference row; Row is ignored inside method bodies.
type ReferenceSpec struct {
	Table string `toml:"table"`
	Key   string `toml:"key"`
	Row   uint32 `toml:"row"`
}

type MapSpec struct {
	Type string `toml:"type"`
	Row  uint32 `toml:"row"`
}

type SynthTypeSpec struct {
	Kind          string            `toml:"kind"`
	Name          string            `toml:"name"`
	Container     string            `toml:"container"`
	Method        string            `toml:"method"`
	MethodName    string            `toml:"method_name"`
	MethodOrdinal int               `toml:"method_ordinal"`
	Pos           *uint32           `toml:"pos"`
	Shape         string            `toml:"shape"`
	Row           uint32            `toml:"row"`
	Members       []SynthMemberSpec `toml:"members"`
}

type SynthMemberSpec struct {
	Role      string  `toml:"role"`
	Kind      string  `toml:"kind"`
	Name      string  `toml:"name"`
	Type      string  `toml:"type"`
	LocalKind string  `toml:"local_kind"`
	Pos       *uint32 `toml:"pos"`
	Static    bool    `toml:"static"`
	Shared    bool    `toml:"shared"`
	Scope     string  `toml:"scope"`
	Params    int     `toml:"params"`
	Row       uint32  `toml:"row"`
}

// GenerationSpec is one batch of edits. Symbols carry over from the previous
// generation and are replaced by key.
type GenerationSpec struct {
	Name      string       `toml:"name"`
	WellKnown []string     `toml:"well_known"`
	Symbols   []SymbolSpec `toml:"symbols"`
	Edits     []EditSpec   `toml:"edits"`
	Expect    ExpectSpec   `toml:"expect"`
}

type SymbolSpec struct {
	Kind       string    `toml:"kind"`
	Key        string    `toml:"key"`
	Name       string    `toml:"name"`
	Container  string    `toml:"container"`
	Ordinal    int       `toml:"ordinal"`
	Static     bool      `toml:"static"`
	Params     []string  `toml:"params"`
	Type       string    `toml:"type"`
	Attributes []string  `toml:"attributes"`
	Accessors  []string  `toml:"accessors"`
	Body       *BodySpec `toml:"body"`
}

type BodySpec struct {
	Content      string            `toml:"content"`
	Length       uint32            `toml:"length"`
	Locals       []LocalSpec       `toml:"locals"`
	References   []ReferenceSpec   `toml:"references"`
	StateMachine *StateMachineSpec `toml:"state_machine"`
	Lambdas      []LambdaSpec      `toml:"lambdas"`
	Closures     []ClosureSpec     `toml:"closures"`
	Dynamic      []DynamicSpec     `toml:"dynamic"`
	Anonymous    []AnonymousSpec   `toml:"anonymous"`
}

type StateMachineSpec struct {
	Kind        string        `toml:"kind"`
	ElementType string        `toml:"element_type"`
	Instance    bool          `toml:"instance"`
	Hoisted     []LocalSpec   `toml:"hoisted"`
	Awaiters    []AwaiterSpec `toml:"awaiters"`
	Finally     int           `toml:"finally"`
}

// AwaiterSpec leaves Pos unset for awaiters reported without an offset.
type AwaiterSpec struct {
	Type string  `toml:"type"`
	Pos  *uint32 `toml:"pos"`
}

type LambdaSpec struct {
	Pos       uint32 `toml:"pos"`
	Signature string `toml:"signature"`
}

type ClosureSpec struct {
	Pos      uint32       `toml:"pos"`
	Parent   *int         `toml:"parent"`
	This     bool         `toml:"this"`
	Captures []NamedType  `toml:"captures"`
	Lambdas  []LambdaSpec `toml:"lambdas"`
}

type NamedType struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

type DynamicSpec struct {
	Pos  uint32 `toml:"pos"`
	Type string `toml:"type"`
}

type AnonymousSpec struct {
	Members []NamedType `toml:"members"`
}

// EditSpec is one edit. SyntaxMap lists [new, old] position pairs; when it is
// absent positions map to themselves.
type EditSpec struct {
	Kind      string     `toml:"kind"`
	Old       string     `toml:"old"`
	New       string     `toml:"new"`
	Preserve  bool       `toml:"preserve"`
	SyntaxMap [][]uint32 `toml:"syntax_map"`
}

// ExpectSpec is checked against the outcome of a generation. Empty fields are
// not checked.
type ExpectSpec struct {
	Error        string              `toml:"error"`
	Log          []string            `toml:"log"`
	Map          []string            `toml:"map"`
	Slots        map[string][]int    `toml:"slots"`
	Locals       map[string][]string `toml:"locals"`
	StateMachine map[string]string   `toml:"state_machine"`
	Members      map[string][]string `toml:"members"`
	Added        map[string]int      `toml:"added"`
}

// Error reports an invalid scenario file.
type Error struct {
	Path   string
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Field, e.Reason)
}

// Diagnose reports the problem as a PRJ5002 diagnostic on the file.
func (e *Error) Diagnose() diag.Diagnostic {
	msg := e.Reason
	if e.Field != "" {
		msg = e.Field + ": " + e.Reason
	}
	return diag.NewError(diag.PrjScenarioInvalid, diag.At(e.Path), msg)
}

// Load decodes the scenario at path.
func Load(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, diag.Wrap(diag.IOLoadFileError, diag.At(path), err)
		}
		return nil, &Error{Path: path, Reason: "failed to parse TOML: " + err.Error()}
	}
	return finish(path, &f, md)
}

// Parse decodes a scenario held in memory; name is used in errors.
func Parse(name, data string) (*File, error) {
	var f File
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, &Error{Path: name, Reason: "failed to parse TOML: " + err.Error()}
	}
	return finish(name, &f, md)
}

func finish(path string, f *File, md toml.MetaData) (*File, error) {
	f.Path = path
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, &Error{Path: path, Reason: "unknown keys " + strings.Join(keys, ", ")}
	}
	if !md.IsDefined("baseline") {
		return nil, &Error{Path: path, Field: "baseline", Reason: "missing"}
	}
	if len(f.Generations) == 0 {
		return nil, &Error{Path: path, Field: "generation", Reason: "scenario has no generations"}
	}
	for i, g := range f.Generations {
		if len(g.Edits) == 0 {
			return nil, &Error{Path: path, Field: fmt.Sprintf("generation[%d].edits", i), Reason: "empty"}
		}
	}
	return f, nil
}

// IsInvalid reports whether err is a scenario description problem.
func IsInvalid(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
