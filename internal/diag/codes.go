package diag

import "fmt"

// Code identifies a kind of diagnostic. The thousands digit selects the
// family and its ID prefix.
type Code uint16

const (
	UnknownCode Code = 0

	// edit validation and delta computation
	EncInfo                         Code = 1000
	EncUnknownSymbol                Code = 1001
	EncDuplicateEdit                Code = 1002
	EncAlreadyDefined               Code = 1003
	EncUnsupportedEdit              Code = 1004
	EncSyntaxMapOutOfRange          Code = 1005
	EncMissingStateMachineAttribute Code = 1006
	EncMissingContainer             Code = 1007
	EncRenameNotSupported           Code = 1008
	EncSynthesizedMemberConflict    Code = 1009
	EncPositionOutOfRange           Code = 1010
	EncMissingBody                  Code = 1011

	// generation chain
	ChnGenerationMismatch Code = 2001
	ChnStoreFailure       Code = 2002

	IOLoadFileError Code = 4001

	// project and scenario files
	PrjManifestInvalid Code = 5001
	PrjScenarioInvalid Code = 5002
)

var families = map[int]string{1: "ENC", 2: "CHN", 4: "IO", 5: "PRJ"}

var titles = map[Code]string{
	UnknownCode:                     "Unknown error",
	EncInfo:                         "Edit information",
	EncUnknownSymbol:                "Unknown symbol",
	EncDuplicateEdit:                "Symbol edited twice in one generation",
	EncAlreadyDefined:               "Inserted symbol already exists",
	EncUnsupportedEdit:              "Edit not supported",
	EncSyntaxMapOutOfRange:          "Syntax map position outside the method body",
	EncMissingStateMachineAttribute: "State machine attribute missing in target runtime",
	EncMissingContainer:             "Containing type neither emitted nor inserted",
	EncRenameNotSupported:           "Update changes the symbol identity",
	EncSynthesizedMemberConflict:    "Synthesized member cannot be reused or added",
	EncPositionOutOfRange:           "Declared position outside the method body",
	EncMissingBody:                  "Method has no body",
	ChnGenerationMismatch:           "Generation does not follow the chain",
	ChnStoreFailure:                 "Generation could not be persisted",
	IOLoadFileError:                 "I/O error",
	PrjManifestInvalid:              "Invalid encdelta.toml",
	PrjScenarioInvalid:              "Invalid scenario file",
}

// ID is the stable printed form, e.g. ENC1006.
func (c Code) ID() string {
	if prefix, ok := families[int(c)/1000]; ok {
		return fmt.Sprintf("%s%04d", prefix, int(c))
	}
	return "E0000"
}

func (c Code) Title() string {
	if t, ok := titles[c]; ok {
		return t
	}
	return titles[UnknownCode]
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
