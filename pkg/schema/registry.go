package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/strata/pkg/core"
)

// DocumentType is a compiled node of an inheritance tree.
// It is immutable once returned by Compile.
type DocumentType struct {
	name     string
	label    string
	tag      string
	abstract bool

	parent   *DocumentType
	root     *DocumentType
	children []*DocumentType

	fields []Field // inherited first, overrides kept in place
	index  map[string]int
	hooks  []core.EventKind

	// root only
	collection    string
	discriminator string
}

// Name returns the type name.
func (t *DocumentType) Name() string {
	return t.name
}

// Label returns the prefix of the event labels contributed by t.
func (t *DocumentType) Label() string {
	return t.label
}

// Tag returns the discriminator value ("" for a root or an untagged abstract type).
func (t *DocumentType) Tag() string {
	return t.tag
}

func (t *DocumentType) Abstract() bool {
	return t.abstract
}

func (t *DocumentType) Parent() *DocumentType {
	return t.parent
}

func (t *DocumentType) Root() *DocumentType {
	return t.root
}

func (t *DocumentType) IsRoot() bool {
	return t.parent == nil
}

// Hooks returns the hook kinds declared by t itself (not its ancestors).
func (t *DocumentType) Hooks() []core.EventKind {
	return slices.Clone(t.hooks)
}

// Children returns the direct subtypes in declaration order.
func (t *DocumentType) Children() []*DocumentType {
	return slices.Clone(t.children)
}

// Collection returns the physical collection shared by the whole hierarchy.
func (t *DocumentType) Collection() string {
	return t.root.collection
}

// Discriminator returns the record field holding the type tag.
func (t *DocumentType) Discriminator() string {
	return t.root.discriminator
}

// Fields returns every declared field, inherited ones first.
func (t *DocumentType) Fields() []Field {
	return slices.Clone(t.fields)
}

// FieldNames returns the declared field names in declaration order.
func (t *DocumentType) FieldNames() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field declared on t or an ancestor.
func (t *DocumentType) Field(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Chain returns the ancestor chain from the root down to t (inclusive).
func (t *DocumentType) Chain() []*DocumentType {
	var chain []*DocumentType
	for cur := t; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	slices.Reverse(chain)
	return chain
}

// Descendants returns every subtype below t, depth-first.
func (t *DocumentType) Descendants() []*DocumentType {
	var out []*DocumentType
	for _, c := range t.children {
		out = append(out, c)
		out = append(out, c.Descendants()...)
	}
	return out
}

// Is reports whether t is other or derives from it.
func (t *DocumentType) Is(other *DocumentType) bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// ScopeTags returns the tags of t and of its tagged descendants, in that order.
// It is empty for a root, whose scope is the whole collection.
func (t *DocumentType) ScopeTags() []string {
	if t.IsRoot() {
		return nil
	}
	var tags []string
	if t.tag != "" {
		tags = append(tags, t.tag)
	}
	for _, d := range t.Descendants() {
		if d.tag != "" {
			tags = append(tags, d.tag)
		}
	}
	return tags
}

func (t *DocumentType) String() string { return t.name }

// Registry resolves discriminator tags and collection names.
// It is built once by Compile and is safe for concurrent reads.
type Registry struct {
	types map[string]*DocumentType
	order []*DocumentType
	roots []*DocumentType
	tags  map[*DocumentType]map[string]*DocumentType // root -> tag -> type
}

// Type returns the compiled type with the given name.
func (r *Registry) Type(name string) (*DocumentType, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownType, name)
	}
	return t, nil
}

// Types returns every compiled type in declaration order.
func (r *Registry) Types() []*DocumentType {
	return slices.Clone(r.order)
}

// Roots returns the hierarchy roots in declaration order.
func (r *Registry) Roots() []*DocumentType {
	return slices.Clone(r.roots)
}

// TagForType returns the discriminator tag of the named type ("" for a root).
func (r *Registry) TagForType(name string) (string, error) {
	t, err := r.Type(name)
	if err != nil {
		return "", err
	}
	return t.tag, nil
}

// TypeForTag maps a stored tag to the concrete type within root's hierarchy.
func (r *Registry) TypeForTag(root *DocumentType, tag string) (*DocumentType, error) {
	if root == nil || r.types[root.name] != root {
		return nil, fmt.Errorf("%w: hierarchy root %v", core.ErrUnknownType, root)
	}
	t, ok := r.tags[root.root][tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q in hierarchy %s", core.ErrUnknownDiscriminator, tag, root.root.name)
	}
	return t, nil
}

// CollectionName returns the collection shared by the hierarchy of the named type.
func (r *Registry) CollectionName(name string) (string, error) {
	t, err := r.Type(name)
	if err != nil {
		return "", err
	}
	return t.Collection(), nil
}

// Resolve picks the concrete type for a stored record of root's hierarchy.
// A record without a discriminator belongs to the root itself.
func (r *Registry) Resolve(root *DocumentType, record core.Record) (*DocumentType, error) {
	root = root.Root()
	raw, ok := record[root.discriminator]
	if !ok || raw == nil {
		if root.abstract {
			return nil, fmt.Errorf("%w: record without %q in abstract hierarchy %s", core.ErrUnknownDiscriminator, root.discriminator, root.name)
		}
		return root, nil
	}
	tag, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %v (%T) in hierarchy %s", core.ErrUnknownDiscriminator, raw, raw, root.name)
	}
	t, err := r.TypeForTag(root, tag)
	if err != nil {
		return nil, err
	}
	if t.abstract {
		return nil, fmt.Errorf("%w: %q resolves to abstract type %s", core.ErrUnknownDiscriminator, tag, t.name)
	}
	return t, nil
}

// Compile validates the declarations and builds the registry.
// Every violation is reported, joined, and wraps core.ErrInvalidSchema.
func Compile(defs ...Type) (*Registry, error) {
	c := &compiler{
		defs:  make(map[string]*Type, len(defs)),
		state: make(map[string]int),
		reg: &Registry{
			types: make(map[string]*DocumentType, len(defs)),
			tags:  make(map[*DocumentType]map[string]*DocumentType),
		},
	}

	var names []string
	for i := range defs {
		d := &defs[i]
		if d.Name == "" {
			c.fail("type #%d has no name", i)
			continue
		}
		if _, dup := c.defs[d.Name]; dup {
			c.fail("type %q declared twice", d.Name)
			continue
		}
		c.defs[d.Name] = d
		names = append(names, d.Name)
	}

	for _, name := range names {
		c.build(name)
	}

	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}
	for _, name := range names {
		c.reg.order = append(c.reg.order, c.reg.types[name])
	}
	return c.reg, nil
}

const (
	unvisited = iota
	visiting
	done
)

type compiler struct {
	defs  map[string]*Type
	state map[string]int
	reg   *Registry
	errs  []error
}

func (c *compiler) fail(format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf("%w: "+format, append([]any{core.ErrInvalidSchema}, args...)...))
}

// build compiles name after its ancestors. It returns nil when the type or an
// ancestor is invalid.
func (c *compiler) build(name string) *DocumentType {
	switch c.state[name] {
	case done:
		return c.reg.types[name]
	case visiting:
		c.fail("inheritance cycle through %q", name)
		return nil
	}
	c.state[name] = visiting
	defer func() { c.state[name] = done }()

	def := c.defs[name]
	t := &DocumentType{
		name:     def.Name,
		label:    def.Label,
		tag:      def.Tag,
		abstract: def.Abstract,
		index:    make(map[string]int),
	}
	if t.label == "" {
		t.label = def.Name
	}

	if def.Parent == "" {
		if !c.buildRoot(t, def) {
			return nil
		}
	} else {
		if _, ok := c.defs[def.Parent]; !ok {
			c.fail("type %q extends unknown type %q", name, def.Parent)
			return nil
		}
		parent := c.build(def.Parent)
		if parent == nil {
			return nil
		}
		if !c.buildChild(t, def, parent) {
			return nil
		}
	}

	if !c.buildFields(t, def) || !c.buildHooks(t, def) {
		return nil
	}
	c.reg.types[name] = t
	return t
}

func (c *compiler) buildRoot(t *DocumentType, def *Type) bool {
	ok := true
	if def.Tag != "" {
		c.fail("root type %q cannot carry a discriminator tag", def.Name)
		ok = false
	}
	t.root = t
	t.collection = def.Collection
	if t.collection == "" {
		t.collection = strings.ToLower(strings.ReplaceAll(def.Name, ".", "_"))
	}
	t.discriminator = def.Discriminator
	if t.discriminator == "" {
		t.discriminator = DefaultDiscriminator
	}
	if t.discriminator == core.IDField {
		c.fail("root type %q cannot use %q as discriminator", def.Name, core.IDField)
		ok = false
	}
	c.reg.roots = append(c.reg.roots, t)
	c.reg.tags[t] = make(map[string]*DocumentType)
	return ok
}

func (c *compiler) buildChild(t *DocumentType, def *Type, parent *DocumentType) bool {
	ok := true
	if def.Collection != "" || def.Discriminator != "" {
		c.fail("type %q: collection and discriminator are only valid on a root", def.Name)
		ok = false
	}
	if def.Tag == "" && !def.Abstract {
		c.fail("concrete type %q needs a discriminator tag", def.Name)
		ok = false
	}
	t.parent = parent
	t.root = parent.root
	parent.children = append(parent.children, t)

	if def.Tag != "" {
		tags := c.reg.tags[t.root]
		if other, dup := tags[def.Tag]; dup {
			c.fail("tag %q used by both %q and %q", def.Tag, other.name, def.Name)
			ok = false
		} else {
			tags[def.Tag] = t
		}
	}

	t.fields = slices.Clone(parent.fields)
	for i, f := range t.fields {
		t.index[f.Name] = i
	}
	return ok
}

func (c *compiler) buildFields(t *DocumentType, def *Type) bool {
	ok := true
	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		switch {
		case f.Name == "":
			c.fail("type %q declares a field without a name", def.Name)
			ok = false
			continue
		case f.Name == core.IDField || f.Name == t.Discriminator():
			c.fail("type %q cannot declare reserved field %q", def.Name, f.Name)
			ok = false
			continue
		case seen[f.Name]:
			c.fail("type %q declares field %q twice", def.Name, f.Name)
			ok = false
			continue
		case !f.Type.Valid():
			c.fail("field %s.%s has unknown value type %q", def.Name, f.Name, f.Type)
			ok = false
			continue
		}
		seen[f.Name] = true

		dflt, err := f.Type.Coerce(f.Default)
		if err != nil {
			c.fail("field %s.%s default: %v", t.name, f.Name, err)
			ok = false
			continue
		}
		f.Default = dflt

		if i, inherited := t.index[f.Name]; inherited {
			t.fields[i] = f
			continue
		}
		t.index[f.Name] = len(t.fields)
		t.fields = append(t.fields, f)
	}
	return ok
}

func (c *compiler) buildHooks(t *DocumentType, def *Type) bool {
	ok := true
	for _, k := range def.Hooks {
		if !k.Valid() {
			c.fail("type %q declares unknown hook %q", def.Name, k)
			ok = false
			continue
		}
		if !slices.Contains(t.hooks, k) {
			t.hooks = append(t.hooks, k)
		}
	}
	return ok
}
