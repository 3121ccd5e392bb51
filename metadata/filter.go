package metadata

import "strings"

// Operator represents a comparison operator for leaf filters.
type Operator string

const (
	// OpEqual represents the equality operator.
	OpEqual Operator = "eq"
	// OpNotEqual represents the inequality operator.
	OpNotEqual Operator = "ne"
	// OpGreaterThan represents the greater than operator.
	OpGreaterThan Operator = "gt"
	// OpGreaterEqual represents the greater than or equal operator.
	OpGreaterEqual Operator = "gte"
	// OpLessThan represents the less than operator.
	OpLessThan Operator = "lt"
	// OpLessEqual represents the less than or equal operator.
	OpLessEqual Operator = "lte"
	// OpIn represents the in list operator.
	OpIn Operator = "in"
	// OpContains represents the contains substring operator.
	OpContains Operator = "contains"
)

// Predicate is a condition tree over metadata documents.
//
// Matches must be pure and side-effect-free: the same document and predicate
// always produce the same answer, and evaluation never mutates either.
type Predicate interface {
	Matches(doc Document) bool
}

// Filter is a leaf comparison on a single metadata field.
type Filter struct {
	Key      string
	Operator Operator
	Value    Value
}

// Matches checks if the provided metadata matches this filter.
// A missing field never matches, regardless of operator.
func (f *Filter) Matches(doc Document) bool {
	value, exists := doc[f.Key]
	if !exists {
		return false
	}

	switch f.Operator {
	case OpEqual:
		return compareEqual(value, f.Value)
	case OpNotEqual:
		return !compareEqual(value, f.Value)
	case OpGreaterThan:
		return compareGreater(value, f.Value)
	case OpGreaterEqual:
		return compareGreater(value, f.Value) || compareEqual(value, f.Value)
	case OpLessThan:
		return compareLess(value, f.Value)
	case OpLessEqual:
		return compareLess(value, f.Value) || compareEqual(value, f.Value)
	case OpIn:
		return compareIn(value, f.Value)
	case OpContains:
		return compareContains(value, f.Value)
	default:
		return false
	}
}

// Eq matches documents where key equals value.
func Eq(key string, value Value) *Filter {
	return &Filter{Key: key, Operator: OpEqual, Value: value}
}

// Ne matches documents where key does not equal value.
func Ne(key string, value Value) *Filter {
	return &Filter{Key: key, Operator: OpNotEqual, Value: value}
}

// Gt matches documents where key is numerically greater than value.
func Gt(key string, value Value) *Filter {
	return &Filter{Key: key, Operator: OpGreaterThan, Value: value}
}

// Gte matches documents where key is numerically greater than or equal to value.
func Gte(key string, value Value) *Filter {
	return &Filter{Key: key, Operator: OpGreaterEqual, Value: value}
}

// Lt matches documents where key is numerically less than value.
func Lt(key string, value Value) *Filter {
	return &Filter{Key: key, Operator: OpLessThan, Value: value}
}

// Lte matches documents where key is numerically less than or equal to value.
func Lte(key string, value Value) *Filter {
	return &Filter{Key: key, Operator: OpLessEqual, Value: value}
}

// In matches documents where key equals one of the given values.
func In(key string, values ...Value) *Filter {
	return &Filter{Key: key, Operator: OpIn, Value: Array(values...)}
}

// Contains matches documents where the string at key contains value as a substring.
func Contains(key string, value Value) *Filter {
	return &Filter{Key: key, Operator: OpContains, Value: value}
}

// AndPredicate matches when all children match.
type AndPredicate struct {
	Preds []Predicate
}

// Matches implements Predicate. An empty conjunction matches everything.
func (p *AndPredicate) Matches(doc Document) bool {
	for _, child := range p.Preds {
		if !child.Matches(doc) {
			return false
		}
	}
	return true
}

// And combines predicates so that all must match.
func And(preds ...Predicate) *AndPredicate {
	return &AndPredicate{Preds: preds}
}

// OrPredicate matches when at least one child matches.
type OrPredicate struct {
	Preds []Predicate
}

// Matches implements Predicate. An empty disjunction matches nothing.
func (p *OrPredicate) Matches(doc Document) bool {
	for _, child := range p.Preds {
		if child.Matches(doc) {
			return true
		}
	}
	return false
}

// Or combines predicates so that at least one must match.
func Or(preds ...Predicate) *OrPredicate {
	return &OrPredicate{Preds: preds}
}

// NotPredicate inverts its child.
type NotPredicate struct {
	Pred Predicate
}

// Matches implements Predicate.
func (p *NotPredicate) Matches(doc Document) bool {
	return !p.Pred.Matches(doc)
}

// Not inverts a predicate.
func Not(pred Predicate) *NotPredicate {
	return &NotPredicate{Pred: pred}
}

func compareEqual(a, b Value) bool {
	if a.Kind == KindNull && b.Kind == KindNull {
		return true
	}
	if a.Kind == KindNull || b.Kind == KindNull {
		return false
	}

	if isNumber(a) && isNumber(b) {
		// Prefer exact int compare when possible.
		if a.Kind == KindInt && b.Kind == KindInt {
			return a.I64 == b.I64
		}
		return asFloat64(a) == asFloat64(b)
	}

	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case KindString:
		return a.s == b.s
	case KindBool:
		return a.B == b.B
	case KindArray:
		if len(a.A) != len(b.A) {
			return false
		}
		for i := range a.A {
			if !compareEqual(a.A[i], b.A[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func compareGreater(a, b Value) bool {
	if !isNumber(a) || !isNumber(b) {
		return false
	}
	return asFloat64(a) > asFloat64(b)
}

func compareLess(a, b Value) bool {
	if !isNumber(a) || !isNumber(b) {
		return false
	}
	return asFloat64(a) < asFloat64(b)
}

func compareIn(a, b Value) bool {
	if b.Kind != KindArray {
		return false
	}
	for _, item := range b.A {
		if compareEqual(a, item) {
			return true
		}
	}
	return false
}

func compareContains(a, b Value) bool {
	if a.Kind != KindString || b.Kind != KindString {
		return false
	}
	return strings.Contains(a.s.Value(), b.s.Value())
}

func isNumber(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

func asFloat64(v Value) float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.I64)
	case KindFloat:
		return v.F64
	default:
		return 0
	}
}
