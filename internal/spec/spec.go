// Package spec describes repository queries as data: a filter, related
// entities to load, ordering and paging. Repositories interpret a
// Specification with Evaluate against their own column mapping.
package spec

type Operator string

const (
	OpEq       Operator = "eq"
	OpContains Operator = "contains"
)

type Criterion struct {
	Field    string
	Operator Operator
	Value    any
}

type Ordering struct {
	Field string
	Desc  bool
}

// Specification is typed by the entity it queries so a Specification[Order]
// cannot be handed to a product repository.
type Specification[T any] struct {
	criteria []Criterion
	includes []string
	orderBy  []Ordering
	skip     uint64
	take     uint64
	paged    bool
}

func New[T any]() *Specification[T] {
	return &Specification[T]{}
}

// Where adds an equality criterion. A slice value matches any of its elements.
func (s *Specification[T]) Where(field string, value any) *Specification[T] {
	s.criteria = append(s.criteria, Criterion{Field: field, Operator: OpEq, Value: value})
	return s
}

// WhereContains adds a case-insensitive substring criterion.
func (s *Specification[T]) WhereContains(field, value string) *Specification[T] {
	s.criteria = append(s.criteria, Criterion{Field: field, Operator: OpContains, Value: value})
	return s
}

func (s *Specification[T]) Include(relations ...string) *Specification[T] {
	s.includes = append(s.includes, relations...)
	return s
}

func (s *Specification[T]) OrderBy(field string) *Specification[T] {
	s.orderBy = append(s.orderBy, Ordering{Field: field})
	return s
}

func (s *Specification[T]) OrderByDesc(field string) *Specification[T] {
	s.orderBy = append(s.orderBy, Ordering{Field: field, Desc: true})
	return s
}

// Page selects a 1-based page. Non-positive values fall back to the first page of DefaultPageSize.
// Indexes past MaxPageIndex select MaxPageIndex.
func (s *Specification[T]) Page(index, size int) *Specification[T] {
	if index < 1 {
		index = 1
	}
	if index > MaxPageIndex {
		index = MaxPageIndex
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	s.skip = uint64(size) * uint64(index-1)
	s.take = uint64(size)
	s.paged = true

	return s
}

// FilterOnly returns a copy carrying only the criteria, used to count the filtered set.
func (s *Specification[T]) FilterOnly() *Specification[T] {
	if s == nil {
		return nil
	}

	return &Specification[T]{criteria: append([]Criterion(nil), s.criteria...)}
}

func (s *Specification[T]) Criteria() []Criterion { return s.criteria }
func (s *Specification[T]) Includes() []string    { return s.includes }
func (s *Specification[T]) Orderings() []Ordering { return s.orderBy }
func (s *Specification[T]) Skip() uint64          { return s.skip }
func (s *Specification[T]) Take() uint64          { return s.take }
func (s *Specification[T]) IsPaged() bool         { return s.paged }

const (
	DefaultPageSize = 6
	MaxPageSize     = 50
	MaxPageIndex    = 1_000_000
)

// PageIndex is the 1-based page selected by Page, or 0 when unpaged.
func (s *Specification[T]) PageIndex() int {
	if !s.paged || s.take == 0 {
		return 0
	}

	return int(s.skip/s.take) + 1
}
