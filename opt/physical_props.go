package opt

import (
	"bytes"
	"fmt"
	"math"

	"github.com/cockroachdb/redact"
)

// PhysicalPropsID identifies a set of physical properties interned by the
// memo. IDs are greater than 0; 0 indicates unknown properties.
type PhysicalPropsID uint32

const (
	// MinPhysPropsID is the id of the set of properties that requires
	// nothing: no ordering and any distribution.
	MinPhysPropsID PhysicalPropsID = 1
)

var _ redact.SafeValue = PhysicalPropsID(0)

// SafeValue implements the redact.SafeValue interface.
func (PhysicalPropsID) SafeValue() {}

// Cost is the estimated cost of a plan. Lower is better.
type Cost float64

// MaxCost is the cost of a plan that could not be built.
var MaxCost = Cost(math.Inf(+1))

func (c Cost) Less(other Cost) bool {
	return c < other
}

// PhysicalProps are properties a relation can provide, or that can be
// required of it.
type PhysicalProps struct {
	Ordering     Ordering
	Distribution Distribution
}

// Defined returns true if the props require anything.
func (p *PhysicalProps) Defined() bool {
	return p.Ordering.Defined() || p.Distribution.Defined()
}

// Provides returns true iff the receiver satisfies every required property.
func (p *PhysicalProps) Provides(required *PhysicalProps) bool {
	return p.Ordering.Provides(required.Ordering) &&
		p.Distribution.Provides(required.Distribution)
}

func (p *PhysicalProps) fingerprint() string {
	if !p.Defined() {
		return ""
	}
	return p.String()
}

func (p *PhysicalProps) String() string {
	if !p.Defined() {
		return "[]"
	}
	var buf bytes.Buffer
	buf.WriteString("[")
	if p.Ordering.Defined() {
		buf.WriteString("ordering: ")
		p.Ordering.format(&buf)
	}
	if p.Distribution.Defined() {
		if p.Ordering.Defined() {
			buf.WriteString(" ")
		}
		buf.WriteString("distribution: ")
		buf.WriteString(p.Distribution.String())
	}
	buf.WriteString("]")
	return buf.String()
}

// OrderingColumn is a column in an ordering. A negative value indicates
// descending order on column -(value).
type OrderingColumn int32

func MakeOrderingColumn(col ColumnID, descending bool) OrderingColumn {
	if descending {
		return OrderingColumn(-col)
	}
	return OrderingColumn(col)
}

func (c OrderingColumn) ID() ColumnID {
	if c < 0 {
		return ColumnID(-c)
	}
	return ColumnID(c)
}

func (c OrderingColumn) Descending() bool {
	return c < 0
}

// Ordering defines the order of rows provided or required by a relation.
type Ordering []OrderingColumn

func (o Ordering) Defined() bool {
	return len(o) != 0
}

// Provides returns true iff the required ordering is a prefix of the
// receiver.
func (o Ordering) Provides(required Ordering) bool {
	if len(o) < len(required) {
		return false
	}
	for i := range required {
		if o[i] != required[i] {
			return false
		}
	}
	return true
}

// ColSet returns the set of columns in the ordering.
func (o Ordering) ColSet() ColSet {
	var cols ColSet
	for _, c := range o {
		cols.Add(int(c.ID()))
	}
	return cols
}

func (o Ordering) String() string {
	var buf bytes.Buffer
	o.format(&buf)
	return buf.String()
}

func (o Ordering) format(buf *bytes.Buffer) {
	for i, col := range o {
		if i > 0 {
			buf.WriteString(",")
		}
		if col.Descending() {
			fmt.Fprintf(buf, "-%d", col.ID())
		} else {
			fmt.Fprintf(buf, "+%d", col.ID())
		}
	}
}

type DistributionKind uint8

const (
	// AnyDistribution places no requirement on where rows are.
	AnyDistribution DistributionKind = iota
	// SingletonDistribution requires all rows on one node.
	SingletonDistribution
	// HashDistribution requires rows partitioned by a hash of Cols.
	HashDistribution
)

// Distribution describes how the rows of a relation are spread over nodes.
type Distribution struct {
	Kind DistributionKind
	Cols ColSet
}

func (d Distribution) Defined() bool {
	return d.Kind != AnyDistribution
}

// Provides returns true iff a relation distributed as d satisfies the
// required distribution.
func (d Distribution) Provides(required Distribution) bool {
	switch required.Kind {
	case AnyDistribution:
		return true
	case SingletonDistribution:
		return d.Kind == SingletonDistribution
	default:
		return d.Kind == HashDistribution && d.Cols.Equals(required.Cols)
	}
}

func (d Distribution) String() string {
	switch d.Kind {
	case SingletonDistribution:
		return "singleton"
	case HashDistribution:
		return "hash" + d.Cols.String()
	default:
		return "any"
	}
}
