package engine

import "github.com/google/uuid"

// contentNamespace roots every ContentId hash so moshell's content hashes
// never collide with an unrelated UUIDv3/v5 namespace in the same process.
var contentNamespace = uuid.MustParse("c9d8b9b4-2b46-4f5a-9f3b-6b3c1b7f9a31")

// NewContentID derives a stable ContentId from the raw bytes an Importer
// read off disk. Using a content hash (rather than an incrementing
// counter) satisfies spec §6's idempotent-importer requirement directly:
// two calls that return the same bytes produce the same ContentId without
// the Importer or the core having to coordinate a counter across calls.
//
// This is the one domain dependency wired from the teacher's go.mod that
// has a natural home in the core itself (see SPEC_FULL.md §B).
func NewContentID(content []byte) ContentId {
	return ContentId(uuid.NewMD5(contentNamespace, content).String())
}
