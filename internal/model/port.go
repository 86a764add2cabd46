package model

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// OutputPort is a typed, fixed-size vector of values produced by a node. It
// is owned by exactly one node and referenced, never owned, by downstream
// input ports.
type OutputPort struct {
	node Node
	name string
	typ  cty.Type
	size int
}

// NewOutputPort creates an output port owned by the given node.
func NewOutputPort(owner Node, name string, typ cty.Type, size int) *OutputPort {
	return &OutputPort{node: owner, name: name, typ: typ, size: size}
}

// Node returns the owning node.
func (p *OutputPort) Node() Node { return p.node }

// Name returns the port name, unique within its node.
func (p *OutputPort) Name() string { return p.name }

// Type returns the element type of the port.
func (p *OutputPort) Type() cty.Type { return p.typ }

// Size returns the number of elements the port produces.
func (p *OutputPort) Size() int { return p.size }

// PortRange is a contiguous sub-range of one output port.
type PortRange struct {
	Port   *OutputPort
	Start  int
	Length int
}

// PortElements is an ordered list of ranges over output ports, describing
// the values an input port consumes. It may draw from several producers.
// A PortElements value is a weak reference: validity is tied to the Model
// that owns the referenced nodes.
type PortElements struct {
	ranges []PortRange
}

// Elements returns a PortElements covering the whole of the given port.
func Elements(p *OutputPort) PortElements {
	return PortElements{ranges: []PortRange{{Port: p, Start: 0, Length: p.size}}}
}

// ElementsRange returns a PortElements covering [start, start+length) of the
// given port.
func ElementsRange(p *OutputPort, start, length int) (PortElements, error) {
	if start < 0 || length < 0 || start+length > p.size {
		return PortElements{}, fmt.Errorf("range [%d,%d) out of bounds for port %q of size %d: %w",
			start, start+length, p.name, p.size, ErrSizeMismatch)
	}
	return PortElements{ranges: []PortRange{{Port: p, Start: start, Length: length}}}, nil
}

// Concat joins several PortElements into one, preserving order. All parts
// must share the same element type.
func Concat(parts ...PortElements) (PortElements, error) {
	var out PortElements
	for _, part := range parts {
		for _, r := range part.ranges {
			if err := out.append(r); err != nil {
				return PortElements{}, err
			}
		}
	}
	return out, nil
}

func (pe *PortElements) append(r PortRange) error {
	if len(pe.ranges) > 0 && !pe.ranges[0].Port.typ.Equals(r.Port.typ) {
		return fmt.Errorf("cannot mix %s and %s elements: %w",
			pe.ranges[0].Port.typ.FriendlyName(), r.Port.typ.FriendlyName(), ErrTypeMismatch)
	}
	// Coalesce with the previous range when contiguous on the same port.
	if n := len(pe.ranges); n > 0 {
		last := &pe.ranges[n-1]
		if last.Port == r.Port && last.Start+last.Length == r.Start {
			last.Length += r.Length
			return nil
		}
	}
	pe.ranges = append(pe.ranges, r)
	return nil
}

// Size returns the total number of elements referenced.
func (pe PortElements) Size() int {
	total := 0
	for _, r := range pe.ranges {
		total += r.Length
	}
	return total
}

// Type returns the shared element type, or cty.NilType for an empty value.
func (pe PortElements) Type() cty.Type {
	if len(pe.ranges) == 0 {
		return cty.NilType
	}
	return pe.ranges[0].Port.typ
}

// Ranges returns a copy of the underlying ranges.
func (pe PortElements) Ranges() []PortRange {
	out := make([]PortRange, len(pe.ranges))
	copy(out, pe.ranges)
	return out
}

// elementRef identifies a single element of an output port. It is the key
// and value type of the transformer's old-to-new mapping.
type elementRef struct {
	port  *OutputPort
	index int
}

// elements enumerates the individual element references in order.
func (pe PortElements) elements() []elementRef {
	refs := make([]elementRef, 0, pe.Size())
	for _, r := range pe.ranges {
		for i := 0; i < r.Length; i++ {
			refs = append(refs, elementRef{port: r.Port, index: r.Start + i})
		}
	}
	return refs
}

// InputPort is a typed value slot a node consumes. Its source values are
// described by a PortElements whose total length must equal the declared
// port size.
type InputPort struct {
	node     Node
	name     string
	typ      cty.Type
	size     int
	elements PortElements
}

// NewInputPort creates an input port of the declared size, fed by the given
// elements. It fails with ErrSizeMismatch when the elements do not total the
// declared size, and ErrTypeMismatch when their type differs from typ.
func NewInputPort(owner Node, name string, typ cty.Type, size int, elements PortElements) (*InputPort, error) {
	if got := elements.Size(); got != size {
		return nil, fmt.Errorf("input %q wants %d elements, got %d: %w", name, size, got, ErrSizeMismatch)
	}
	if et := elements.Type(); size > 0 && !et.Equals(typ) {
		return nil, fmt.Errorf("input %q wants %s elements, got %s: %w",
			name, typ.FriendlyName(), et.FriendlyName(), ErrTypeMismatch)
	}
	return &InputPort{node: owner, name: name, typ: typ, size: size, elements: elements}, nil
}

// Node returns the owning node.
func (p *InputPort) Node() Node { return p.node }

// Name returns the port name, unique within its node.
func (p *InputPort) Name() string { return p.name }

// Type returns the element type of the port.
func (p *InputPort) Type() cty.Type { return p.typ }

// Size returns the declared number of elements the port consumes.
func (p *InputPort) Size() int { return p.size }

// Elements returns the source values feeding this port.
func (p *InputPort) Elements() PortElements { return p.elements }
