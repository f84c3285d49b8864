package lifecycle

// Opt is an explicitly optional value. The zero Opt is unset.
type Opt[V any] struct {
	value V
	set   bool
}

// Some returns a set Opt holding v.
func Some[V any](v V) Opt[V] {
	return Opt[V]{value: v, set: true}
}

// None returns an unset Opt.
func None[V any]() Opt[V] {
	return Opt[V]{}
}

// FromPtr maps nil to None and anything else to Some.
func FromPtr[V any](p *V) Opt[V] {
	if p == nil {
		return None[V]()
	}
	return Some(*p)
}

// Get returns the value and whether it is set.
func (o Opt[V]) Get() (V, bool) {
	return o.value, o.set
}

// IsSet reports whether the Opt holds a value.
func (o Opt[V]) IsSet() bool {
	return o.set
}

// Field is a statically declared, settable content field of T.
type Field[T any, V any] struct {
	Name string
	Set  func(rec T, v V)
}

// Change is one pending field assignment.
type Change[T any] struct {
	field string
	apply func(T)
}

// To returns the change assigning o to the field, or an empty change when o
// is unset.
func (f Field[T, V]) To(o Opt[V]) Change[T] {
	v, ok := o.Get()
	if !ok {
		return Change[T]{}
	}
	set := f.Set
	return Change[T]{field: f.Name, apply: func(rec T) { set(rec, v) }}
}

// Patch is an ordered list of field changes. Empty changes are skipped.
type Patch[T any] []Change[T]

// Fields returns the names of the fields the patch assigns.
func (p Patch[T]) Fields() []string {
	names := make([]string, 0, len(p))
	for _, c := range p {
		if c.apply != nil {
			names = append(names, c.field)
		}
	}
	return names
}

// Empty reports whether the patch assigns nothing.
func (p Patch[T]) Empty() bool {
	return len(p.Fields()) == 0
}

// Apply assigns every set field on rec.
func (p Patch[T]) Apply(rec T) {
	for _, c := range p {
		if c.apply != nil {
			c.apply(rec)
		}
	}
}
