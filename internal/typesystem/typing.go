package typesystem

import "github.com/modernsh/moshell/internal/reef"

// Typing is a reef's append-only, deduplicating table of types (spec §3,
// §4.3).
type Typing struct {
	reefID reef.ID
	rows   []Type
	byKey  map[string]TypeId // structural dedup, everything except Polytype
	byName map[string]TypeId // named-type index (primitives, named functions, polytypes)
	nextID int

	// superChain is the single super-type chain used by the lang reef only
	// (spec §3: "the type context records a single super-type chain used
	// by the lang reef only, e.g., ExitCode <: Int <: Float"). Index i is a
	// direct subtype of index i+1.
	superChain []TypeRef
}

// NewTyping creates an empty Typing table for reefID.
func NewTyping(reefID reef.ID) *Typing {
	return &Typing{
		reefID: reefID,
		byKey:  make(map[string]TypeId),
		byName: make(map[string]TypeId),
	}
}

// Add inserts t, deduplicating by structural equality (Polytype excluded),
// optionally registering it under name for later by-name lookup.
func (t *Typing) Add(typ Type, name string) TypeRef {
	if key, dedup := typ.structuralKey(); dedup {
		if id, ok := t.byKey[key]; ok {
			if name != "" {
				t.byName[name] = id
			}
			return TypeRef{Reef: t.reefID, ID: id}
		}
		id := t.append(typ)
		t.byKey[key] = id
		if name != "" {
			t.byName[name] = id
		}
		return TypeRef{Reef: t.reefID, ID: id}
	}
	id := t.append(typ)
	if name != "" {
		t.byName[name] = id
	}
	return TypeRef{Reef: t.reefID, ID: id}
}

func (t *Typing) append(typ Type) TypeId {
	id := TypeId(len(t.rows))
	t.rows = append(t.rows, typ)
	return id
}

// NewPolytype creates a fresh, always-unique type variable (spec §3:
// "Polytype — an unbound type variable with an optional name, created only
// while instantiating a generic signature").
func (t *Typing) NewPolytype(name string) TypeRef {
	t.nextID++
	id := t.append(Type{Kind: KindPolytype, PolytypeName: name, polytypeUID: t.nextID})
	return TypeRef{Reef: t.reefID, ID: id}
}

// Get resolves a local TypeId to its Type. The caller must already know
// ref.Reef == this table's reefID; Get never consults another reef's
// table.
func (t *Typing) Get(id TypeId) Type {
	return t.rows[id]
}

// ByName looks up a type previously registered under name.
func (t *Typing) ByName(name string) (TypeRef, bool) {
	id, ok := t.byName[name]
	if !ok {
		return TypeRef{}, false
	}
	return TypeRef{Reef: t.reefID, ID: id}, true
}

// SetSuperChain installs the explicit super-type chain used by the lang
// reef (spec §3). refs[i] <: refs[i+1] for every i.
func (t *Typing) SetSuperChain(refs ...TypeRef) {
	t.superChain = refs
}

// directSuper returns the type ref's direct supertype from the explicit
// chain, if any.
func (t *Typing) directSuper(ref TypeRef) (TypeRef, bool) {
	for i, r := range t.superChain {
		if r == ref && i+1 < len(t.superChain) {
			return t.superChain[i+1], true
		}
	}
	return TypeRef{}, false
}

// Len returns the number of types registered so far.
func (t *Typing) Len() int {
	return len(t.rows)
}

// ReefID returns the reef this table belongs to.
func (t *Typing) ReefID() reef.ID {
	return t.reefID
}
