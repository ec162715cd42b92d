// Package config holds process-wide toggles and naming constants shared
// across the analysis core, the way the teacher's internal/config does for
// its own pipeline.
package config

// SourceFileExtensions are the recognized source file extensions an
// Importer (spec §6) may produce ASTs for. The core itself never checks
// these — they exist for callers building an Importer.
var SourceFileExtensions = []string{".msh", ".shl"}

// HasSourceExt reports whether path ends with a recognized source
// extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// NormalizeTypeVarNames enables stable rendering of generated polytype
// names ("t1", "t2", ...) as "t?" so tests and tooling get deterministic
// output regardless of allocation order. Mirrors the teacher's
// config.IsTestMode/IsLSPMode toggles in internal/typesystem/types.go.
var NormalizeTypeVarNames = false

// LangReefName is the reserved name of the predefined reef (spec §2).
const LangReefName = "lang"

// EntryModuleName is the name collect() starts expansion from when no
// explicit entry is supplied.
const EntryModuleName = "main"
