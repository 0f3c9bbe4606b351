package workload

import (
	"fmt"
	"strings"

	"github.com/joshuapare/cellheap/gc"
	"github.com/joshuapare/cellheap/internal/format"
)

// fieldSize is the width of one object field: a tagged gc.Value.
const fieldSize = 8

// Object is the synthetic mutator's heap object. Its fields live in the slot
// payload as little-endian tagged Values, so block memory never holds Go
// pointers.
type Object struct {
	gc.Header
	fields []byte
}

// NewObject returns a constructor for an object using the whole slot.
func NewObject(s gc.Slot) *Object {
	return &Object{fields: s.Payload}
}

// NumFields returns the number of Value fields.
func (o *Object) NumFields() int { return len(o.fields) / fieldSize }

// Field returns field i.
func (o *Object) Field(i int) gc.Value {
	return gc.Value(format.ReadU64(o.fields, i*fieldSize))
}

// SetField stores v in field i.
func (o *Object) SetField(i int, v gc.Value) {
	format.PutU64(o.fields, i*fieldSize, uint64(v))
}

// VisitChildren reports every reference field.
func (o *Object) VisitChildren(v gc.Visitor) {
	for i := range o.NumFields() {
		v.VisitValue(o.Field(i))
	}
}

// Describe lists the object's fields.
func (o *Object) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "obj@%v{", o.Addr())
	n := o.NumFields()
	shown := min(n, 4)
	for i := range shown {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(o.Field(i).String())
	}
	if n > shown {
		fmt.Fprintf(&sb, " +%d", n-shown)
	}
	sb.WriteString("}")
	return sb.String()
}
