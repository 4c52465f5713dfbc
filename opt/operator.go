package opt

import "github.com/cockroachdb/redact"

// Operator describes the type of operation that a memo expression performs.
// Some operators are logical (they describe what is computed), some are
// physical (they describe how), and enforcers are physical operators that only
// exist to provide a required property. Enforcers are never stored in the
// memo; they only appear in winners and extracted plans.
type Operator uint16

const (
	UnknownOp Operator = iota

	// ------------------------------------------------------------
	// Logical operators
	// ------------------------------------------------------------

	ScanOp
	SelectOp
	ProjectOp
	InnerJoinOp
	GroupByOp
	LimitOp

	// ------------------------------------------------------------
	// Physical operators
	// ------------------------------------------------------------

	TableScanOp
	FilterOp
	RenderOp
	HashJoinOp
	MergeJoinOp
	HashGroupByOp
	LimitExecOp

	// ------------------------------------------------------------
	// Enforcers
	// ------------------------------------------------------------

	SortOp
	ExchangeOp

	// NumOperators tracks the total count of operators.
	NumOperators
)

// OperatorKind classifies operators.
type OperatorKind uint8

const (
	LogicalKind OperatorKind = iota + 1
	PhysicalKind
	EnforcerKind
)

type opInfo struct {
	name  string
	kind  OperatorKind
	arity int
}

var opTab = [NumOperators]opInfo{
	UnknownOp: {name: "unknown"},

	ScanOp:      {name: "scan", kind: LogicalKind, arity: 0},
	SelectOp:    {name: "select", kind: LogicalKind, arity: 1},
	ProjectOp:   {name: "project", kind: LogicalKind, arity: 1},
	InnerJoinOp: {name: "inner-join", kind: LogicalKind, arity: 2},
	GroupByOp:   {name: "group-by", kind: LogicalKind, arity: 1},
	LimitOp:     {name: "limit", kind: LogicalKind, arity: 1},

	TableScanOp:   {name: "table-scan", kind: PhysicalKind, arity: 0},
	FilterOp:      {name: "filter", kind: PhysicalKind, arity: 1},
	RenderOp:      {name: "render", kind: PhysicalKind, arity: 1},
	HashJoinOp:    {name: "hash-join", kind: PhysicalKind, arity: 2},
	MergeJoinOp:   {name: "merge-join", kind: PhysicalKind, arity: 2},
	HashGroupByOp: {name: "hash-group-by", kind: PhysicalKind, arity: 1},
	LimitExecOp:   {name: "limit-exec", kind: PhysicalKind, arity: 1},

	SortOp:     {name: "sort", kind: EnforcerKind, arity: 1},
	ExchangeOp: {name: "exchange", kind: EnforcerKind, arity: 1},
}

var _ redact.SafeValue = Operator(0)

// SafeValue implements the redact.SafeValue interface.
func (op Operator) SafeValue() {}

func (op Operator) String() string {
	if op >= NumOperators {
		return "invalid"
	}
	return opTab[op].name
}

func (op Operator) Kind() OperatorKind {
	if op >= NumOperators {
		return 0
	}
	return opTab[op].kind
}

// Arity is the number of child groups an expression with this operator has.
func (op Operator) Arity() int {
	return opTab[op].arity
}

func (op Operator) IsLogical() bool {
	return op.Kind() == LogicalKind
}

// IsPhysical returns true for physical operators, including enforcers.
func (op Operator) IsPhysical() bool {
	k := op.Kind()
	return k == PhysicalKind || k == EnforcerKind
}

func (op Operator) IsEnforcer() bool {
	return op.Kind() == EnforcerKind
}
