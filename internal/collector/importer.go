package collector

import (
	"github.com/modernsh/moshell/internal/ast"
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/reef"
)

// ImportStatus is the outcome of one Importer.Import call (spec §6).
type ImportStatus int

const (
	ImportSuccess ImportStatus = iota
	ImportNotFound
	ImportFailure
)

// ImportResult is what an Importer hands back for one requested module
// name (spec §6: "Success{content_id, expr} | NotFound | Failure").
type ImportResult struct {
	Status  ImportStatus
	Content []byte // raw bytes, hashed into a ContentId via engine.NewContentID
	Module  *ast.Module
	Err     error // ImportFailure only
}

// Importer is the sole external resource the collector calls out to (spec
// §6). Implementations must be idempotent: importing the same name twice
// yields the same ContentId.
type Importer interface {
	Import(name reef.Name) ImportResult
}

// contentID computes the ContentId for an already-imported module's raw
// bytes.
func contentID(content []byte) engine.ContentId {
	return engine.NewContentID(content)
}
