package engine

import "fmt"

// Engine is the process-local, append-only table of Environments keyed by
// SourceId (spec §3). One Engine exists per reef.
type Engine struct {
	environments []*Environment
	contentOf    []ContentId // parallel to environments; a nested function environment carries its root's entry
	meta         ReefMeta
}

// New creates an empty Engine for the given reef.
func New(meta ReefMeta) *Engine {
	return &Engine{meta: meta}
}

// Track appends env, associates it with contentID (the ContentId of the
// source text that produced it), and returns its freshly allocated
// SourceId.
//
// Invariant (spec §3): an environment's parent, if present, was tracked
// before it — Track panics if env.ParentID references an id >= the new
// SourceId, which would violate that invariant.
func (e *Engine) Track(env *Environment, contentID ContentId) SourceId {
	id := SourceId(len(e.environments))
	if env.ParentID != nil && *env.ParentID >= id {
		panic(fmt.Sprintf("engine: environment parent %d must be tracked before its child %d", *env.ParentID, id))
	}
	e.environments = append(e.environments, env)
	e.contentOf = append(e.contentOf, contentID)
	return id
}

// Get returns the Environment tracked under id. Panics on an out-of-range
// id — the spec invariant guarantees "for every SourceId <= engine length
// the engine returns exactly one environment", so an out-of-range id is a
// caller bug, not a recoverable condition.
func (e *Engine) Get(id SourceId) *Environment {
	return e.environments[id]
}

// ContentOf returns the ContentId associated with id's environment.
func (e *Engine) ContentOf(id SourceId) ContentId {
	return e.contentOf[id]
}

// Len returns the number of tracked environments (the next SourceId that
// Track would hand out).
func (e *Engine) Len() int {
	return len(e.environments)
}

// Reef returns the metadata of the reef this Engine belongs to.
func (e *Engine) Reef() ReefMeta {
	return e.meta
}

// Roots returns the SourceIds of every root (module) Environment, in
// ascending SourceId order — the deterministic iteration order spec §5
// requires.
func (e *Engine) Roots() []SourceId {
	var roots []SourceId
	for i, env := range e.environments {
		if env.ParentID == nil {
			roots = append(roots, SourceId(i))
		}
	}
	return roots
}

// All returns every tracked SourceId in ascending order.
func (e *Engine) All() []SourceId {
	ids := make([]SourceId, len(e.environments))
	for i := range e.environments {
		ids[i] = SourceId(i)
	}
	return ids
}
