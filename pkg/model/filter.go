package model

// FilterOp defines the supported filter operators, named after the
// operators the data service accepts on the wire.
type FilterOp string

const (
	OpEq    FilterOp = "eq"
	OpNeq   FilterOp = "neq"
	OpGt    FilterOp = "gt"
	OpGte   FilterOp = "gte"
	OpLt    FilterOp = "lt"
	OpLte   FilterOp = "lte"
	OpLike  FilterOp = "like"
	OpILike FilterOp = "ilike"
	OpIs    FilterOp = "is"
	OpIn    FilterOp = "in"
)

// IsValid checks if the operator is valid.
func (op FilterOp) IsValid() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike, OpILike, OpIs, OpIn:
		return true
	}
	return false
}

// Filters is a slice of Filter.
type Filters []Filter

// Filter represents a single column predicate.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  string   `json:"value"`
}

// Validate checks if the filter is valid.
func (f Filter) Validate() bool {
	if f.Column == "" {
		return false
	}
	return f.Op.IsValid()
}

// Order is an ordering clause. Paginated queries must carry an explicit
// ordering; the data service's default order is never relied on.
type Order struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}
