// Package diag defines the diagnostics the edit validator and the delta
// driver attach to a rejected generation, and the Failure error the file
// loaders return. A diagnostic names a Code such as ENC1006, the Subject it
// is about (a symbol key, optionally a syntax position in its body) and a
// short message.
package diag
