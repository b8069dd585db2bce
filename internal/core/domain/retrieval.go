package domain

// Range bounds a numeric field; nil bounds are open.
type Range struct {
	Gte *float64
	Lte *float64
}

// Condition is either a numeric range or an equality match on Field.
// Value holds a string or a bool for equality conditions.
type Condition struct {
	Field string
	Range *Range
	Value any
}

// Predicate is a conjunction of conditions.
type Predicate struct {
	Must []Condition
}

func (p Predicate) IsEmpty() bool {
	return len(p.Must) == 0
}

func (p Predicate) Fields() []string {
	out := make([]string, 0, len(p.Must))
	for _, c := range p.Must {
		out = append(out, c.Field)
	}
	return out
}

type RetrievedItem struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    *float64
}
