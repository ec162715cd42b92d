// Package native builds the lang reef (spec §4.5): the predefined reef
// populated, before any user reef is analyzed, with the primitive types
// and the operator-as-method catalog the ascription pass dispatches
// through and the emitter maps to opcodes.
//
// The catalog is declared as data (catalog.yaml) rather than Go code,
// the way the teacher's internal/ext package externalizes funxy.yaml
// instead of hand-registering dependencies in source — it keeps the set
// of native operators diffable and reviewable independent of the Go code
// that interprets them.
package native

import (
	_ "embed"
	"fmt"

	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/typesystem"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type methodEntry struct {
	Receiver string   `yaml:"receiver"`
	Name     string   `yaml:"name"`
	Params   []string `yaml:"params"`
	Return   string   `yaml:"return"`
}

type catalogFile struct {
	SuperChain []string      `yaml:"super_chain"`
	Types      []string      `yaml:"types"`
	Methods    []methodEntry `yaml:"methods"`
}

// Method describes one registered native operator (spec §4.5), keyed by
// the NativeId the emitter uses to pick an opcode.
type Method struct {
	ID       typesystem.NativeId
	Receiver typesystem.Prim
	Name     string
	Params   []typesystem.Prim
	Return   typesystem.Prim
}

// Catalog is the parsed, ready-to-query native catalog.
type Catalog struct {
	methods   []Method
	byKey     map[string]typesystem.NativeId // "Receiver.Name(Params...)" -> id
	primitive map[typesystem.Prim]typesystem.TypeRef
}

// primByName maps catalog.yaml's string names to typesystem.Prim.
func primByName(name string) (typesystem.Prim, error) {
	switch name {
	case "Nothing":
		return typesystem.Nothing, nil
	case "Unit":
		return typesystem.Unit, nil
	case "Bool":
		return typesystem.Bool, nil
	case "ExitCode":
		return typesystem.ExitCode, nil
	case "Int":
		return typesystem.Int, nil
	case "Float":
		return typesystem.Float, nil
	case "String":
		return typesystem.String, nil
	case "Error":
		return typesystem.Error, nil
	default:
		return 0, fmt.Errorf("native: unknown primitive %q in catalog", name)
	}
}

// Build parses the embedded catalog and registers every primitive type
// into typ (the lang reef's Typing table), returning the queryable
// Catalog alongside it.
func Build(typ *typesystem.Typing) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(catalogYAML, &cf); err != nil {
		return nil, fmt.Errorf("native: parsing catalog.yaml: %w", err)
	}

	cat := &Catalog{
		byKey:     make(map[string]typesystem.NativeId),
		primitive: make(map[typesystem.Prim]typesystem.TypeRef),
	}

	for _, name := range cf.Types {
		p, err := primByName(name)
		if err != nil {
			return nil, err
		}
		cat.primitive[p] = typ.Add(typesystem.Type{Kind: typesystem.KindPrimitive, Prim: p}, name)
	}

	var chain []typesystem.TypeRef
	for _, name := range cf.SuperChain {
		p, err := primByName(name)
		if err != nil {
			return nil, err
		}
		ref, ok := cat.primitive[p]
		if !ok {
			return nil, fmt.Errorf("native: super_chain entry %q not declared in types", name)
		}
		chain = append(chain, ref)
	}
	typ.SetSuperChain(chain...)

	for i, m := range cf.Methods {
		recv, err := primByName(m.Receiver)
		if err != nil {
			return nil, err
		}
		ret, err := primByName(m.Return)
		if err != nil {
			return nil, err
		}
		params := make([]typesystem.Prim, len(m.Params))
		for j, p := range m.Params {
			pp, err := primByName(p)
			if err != nil {
				return nil, err
			}
			params[j] = pp
		}
		id := typesystem.NativeId(i)
		cat.methods = append(cat.methods, Method{
			ID: id, Receiver: recv, Name: m.Name, Params: params, Return: ret,
		})
		cat.byKey[key(recv, m.Name, params)] = id
	}

	return cat, nil
}

func key(recv typesystem.Prim, name string, params []typesystem.Prim) string {
	s := fmt.Sprintf("%s.%s(", recv, name)
	for i, p := range params {
		if i > 0 {
			s += ","
		}
		s += p.String()
	}
	return s + ")"
}

// Lookup finds the native method named name on receiver accepting the
// given argument primitives (spec §4.4: "operator-as-method dispatch").
// Returns false if no such method is registered.
func (c *Catalog) Lookup(receiver typesystem.Prim, name string, args []typesystem.Prim) (Method, bool) {
	id, ok := c.byKey[key(receiver, name, args)]
	if !ok {
		return Method{}, false
	}
	for _, m := range c.methods {
		if m.ID == id {
			return m, true
		}
	}
	return Method{}, false
}

// Primitive returns the TypeRef registered for p in the lang reef's
// Typing table.
func (c *Catalog) Primitive(p typesystem.Prim) typesystem.TypeRef {
	ref, ok := c.primitive[p]
	if !ok {
		panic(fmt.Sprintf("native: primitive %s not registered", p))
	}
	return ref
}

// PrimByName resolves a type annotation's leaf name to a primitive, for
// the ascription pass's type-reference resolution (spec §4.4 type
// annotations always name one of the lang reef's primitives in this
// core, since user-defined nominal types aren't supported).
func (c *Catalog) PrimByName(name string) (typesystem.Prim, bool) {
	p, err := primByName(name)
	if err != nil {
		return 0, false
	}
	if _, ok := c.primitive[p]; !ok {
		return 0, false
	}
	return p, true
}

// Methods returns every registered native method, in catalog order.
func (c *Catalog) Methods() []Method {
	return c.methods
}

// MethodByID finds the registered method carrying id, for the emitter's
// NativeId-to-opcode mapping (spec §4.6 "Method call (native): ... the
// native's opcode (mapped from NativeId)").
func (c *Catalog) MethodByID(id typesystem.NativeId) (Method, bool) {
	for _, m := range c.methods {
		if m.ID == id {
			return m, true
		}
	}
	return Method{}, false
}

// NewLangEngine returns an empty Engine tagged as the lang reef (spec §2:
// "one predefined lang reef") — it carries no user-authored Environments,
// only the reef identity the Typing table's TypeRefs point back to.
func NewLangEngine() *engine.Engine {
	return engine.New(engine.ReefMeta{ID: reef.LangID, Name: "lang"})
}
