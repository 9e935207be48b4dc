// Package artifact writes the delta of one generation as a canonical CBOR
// document, the file the metadata emitter consumes. Equal deltas always
// encode to identical bytes.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"encdelta/internal/driver"
	"encdelta/internal/meta"
)

// FormatVersion is bumped whenever Document changes shape.
const FormatVersion uint16 = 1

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Document is the emitter-facing form of a delta.
type Document struct {
	Version    uint16   `cbor:"version"`
	Generation int      `cbor:"generation"`
	EncID      string   `cbor:"enc_id"`
	BaseID     string   `cbor:"base_id"`
	Order      string   `cbor:"order"`
	Log        []Entry  `cbor:"log"`
	Map        []Entry  `cbor:"map"`
	Methods    []Method `cbor:"methods"`
	Types      []Type   `cbor:"types,omitempty"`
}

// Entry is one EncLog or EncMap entry. Op is always zero in the map.
type Entry struct {
	Table uint8  `cbor:"t"`
	Row   uint32 `cbor:"r"`
	Op    uint8  `cbor:"op,omitempty"`
}

// Method carries what the emitter needs to write one body.
type Method struct {
	Key          string `cbor:"key"`
	Token        uint32 `cbor:"token"`
	SignatureRow uint32 `cbor:"sig,omitempty"`
	Slots        []Slot `cbor:"slots"`
	StateMachine string `cbor:"state_machine,omitempty"`
}

// Slot is one local of the body's signature.
type Slot struct {
	Type     string `cbor:"type"`
	Kind     uint8  `cbor:"kind"`
	Position uint32 `cbor:"pos"`
	Unused   bool   `cbor:"unused,omitempty"`
}

// Type lists the members of one synthesized type touched by the generation.
type Type struct {
	Name    string   `cbor:"name"`
	Members []string `cbor:"members"`
}

// FromResult converts an accepted generation into a document. Methods and
// types are sorted by key so map iteration order never leaks into the bytes.
func FromResult(res *driver.Result) *Document {
	d := res.Delta
	doc := &Document{
		Version:    FormatVersion,
		Generation: d.Generation,
		EncID:      d.EncID.String(),
		BaseID:     d.BaseID.String(),
		Order:      d.Order,
		Log:        make([]Entry, len(d.Log)),
		Map:        make([]Entry, len(d.Map)),
	}
	for i, e := range d.Log {
		doc.Log[i] = Entry{Table: uint8(e.Table), Row: uint32(e.Row), Op: uint8(e.Op)}
	}
	for i, e := range d.Map {
		doc.Map[i] = Entry{Table: uint8(e.Table), Row: uint32(e.Row)}
	}

	keys := make([]string, 0, len(res.Methods))
	for k := range res.Methods {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		m := res.Methods[k]
		out := Method{
			Key:          k,
			Token:        m.Handle.Token(),
			SignatureRow: uint32(m.SignatureRow),
			Slots:        make([]Slot, len(m.Signature.Slots)),
			StateMachine: m.StateMachine,
		}
		for i, s := range m.Signature.Slots {
			out.Slots[i] = Slot{
				Type:     s.Descriptor.Type,
				Kind:     uint8(s.Descriptor.Kind),
				Position: uint32(s.Descriptor.Position),
				Unused:   s.Unused,
			}
		}
		doc.Methods = append(doc.Methods, out)
	}

	typeNames := make([]string, 0, len(res.MemberSets))
	for name := range res.MemberSets {
		typeNames = append(typeNames, name)
	}
	slices.Sort(typeNames)
	for _, name := range typeNames {
		doc.Types = append(doc.Types, Type{Name: name, Members: res.MemberNames(name)})
	}
	return doc
}

// Encode serializes doc to canonical CBOR.
func Encode(doc *Document) ([]byte, error) {
	return encMode.Marshal(doc)
}

// Decode deserializes a document and checks its version.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("artifact: unmarshal document: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("artifact: unsupported format version %d", doc.Version)
	}
	return &doc, nil
}

// FileName is the conventional file name of generation n.
func FileName(n int) string { return fmt.Sprintf("delta-%06d.cbor", n) }

// WriteFile encodes doc into dir under FileName and returns the path.
func WriteFile(dir string, doc *Document) (string, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", fmt.Errorf("artifact: encode generation %d: %w", doc.Generation, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(doc.Generation))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// LogLines renders the document's EncLog like delta.Delta.LogLines.
func (doc *Document) LogLines() []string {
	out := make([]string, len(doc.Log))
	for i, e := range doc.Log {
		out[i] = meta.LogEntry{Row: meta.RowID(e.Row), Table: meta.TableIndex(e.Table), Op: meta.Operation(e.Op)}.String()
	}
	return out
}

// ReadFile decodes the artifact at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
