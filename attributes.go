// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

// DefaultIODispatcher names the pool blocking reads run on unless a
// Dispatcher attribute says otherwise.
const DefaultIODispatcher = "io-dispatcher"

// Attribute is one entry of an Attributes list. The concrete types are
// NameAttribute, InputBufferAttribute and DispatcherAttribute.
type Attribute interface {
	attribute()
}

// NameAttribute names a stage for logs and error messages.
type NameAttribute struct{ Name string }

// InputBufferAttribute overrides the buffer policy for one stage.
type InputBufferAttribute struct {
	Initial int
	Max     int
}

// DispatcherAttribute selects the pool that runs a stage's blocking work.
type DispatcherAttribute struct{ Name string }

func (NameAttribute) attribute()        {}
func (InputBufferAttribute) attribute() {}
func (DispatcherAttribute) attribute()  {}

// Attributes is an immutable, ordered list of attributes. When the same
// kind appears more than once the last entry wins.
type Attributes struct {
	list []Attribute
}

// NewAttributes builds an Attributes value from attrs.
func NewAttributes(attrs ...Attribute) Attributes {
	if len(attrs) == 0 {
		return Attributes{}
	}
	list := make([]Attribute, len(attrs))
	copy(list, attrs)
	return Attributes{list: list}
}

// Named is shorthand for NewAttributes(NameAttribute{name}).
func Named(name string) Attributes { return NewAttributes(NameAttribute{Name: name}) }

// InputBuffer is shorthand for an InputBufferAttribute.
func InputBuffer(initial, max int) Attributes {
	return NewAttributes(InputBufferAttribute{Initial: initial, Max: max})
}

// Dispatcher is shorthand for a DispatcherAttribute.
func Dispatcher(name string) Attributes { return NewAttributes(DispatcherAttribute{Name: name}) }

// And returns a new Attributes with other appended after a. Neither input
// is modified.
func (a Attributes) And(other Attributes) Attributes {
	if len(other.list) == 0 {
		return a
	}
	if len(a.list) == 0 {
		return other
	}
	list := make([]Attribute, 0, len(a.list)+len(other.list))
	list = append(list, a.list...)
	list = append(list, other.list...)
	return Attributes{list: list}
}

// List returns a copy of the attribute list.
func (a Attributes) List() []Attribute {
	out := make([]Attribute, len(a.list))
	copy(out, a.list)
	return out
}

// Name returns the last NameAttribute.
func (a Attributes) Name() (string, bool) {
	for i := len(a.list) - 1; i >= 0; i-- {
		if n, ok := a.list[i].(NameAttribute); ok {
			return n.Name, true
		}
	}
	return "", false
}

// NameOrDefault returns Name or def when none is set.
func (a Attributes) NameOrDefault(def string) string {
	if n, ok := a.Name(); ok {
		return n
	}
	return def
}

// InputBuffer returns the last InputBufferAttribute.
func (a Attributes) InputBuffer() (InputBufferAttribute, bool) {
	for i := len(a.list) - 1; i >= 0; i-- {
		if b, ok := a.list[i].(InputBufferAttribute); ok {
			return b, true
		}
	}
	return InputBufferAttribute{}, false
}

// Dispatcher returns the last DispatcherAttribute's name.
func (a Attributes) Dispatcher() (string, bool) {
	for i := len(a.list) - 1; i >= 0; i-- {
		if d, ok := a.list[i].(DispatcherAttribute); ok {
			return d.Name, true
		}
	}
	return "", false
}

// Shape describes the single outlet of a source.
type Shape struct {
	Outlet string
}

func defaultShape(name string) Shape { return Shape{Outlet: name + ".out"} }

// amendShape renames the outlet after the attributes' name, keeping s when
// no name is present.
func amendShape(s Shape, attrs Attributes) Shape {
	if name, ok := attrs.Name(); ok {
		return defaultShape(name)
	}
	return s
}
