package spec

import (
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// likeEscaper makes LIKE wildcards in a contains value match literally, using the default backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Mapping tells Evaluate how specification fields translate to SQL for one entity.
type Mapping struct {
	Columns    map[string]string
	Relations  []string
	PrimaryKey string
}

// Query is an evaluated specification: the SQL builder plus the relations
// the repository has to load for every returned row.
type Query struct {
	Builder  sq.SelectBuilder
	Includes []string
}

// Evaluate applies filter, includes, ordering and paging to base, in that
// order, so paging is always computed over the filtered set.
func Evaluate[T any](base sq.SelectBuilder, s *Specification[T], m Mapping) (Query, error) {
	q := Query{Builder: base}
	if s == nil {
		return q, nil
	}

	for _, c := range s.criteria {
		column, err := m.column(c.Field)
		if err != nil {
			return Query{}, err
		}

		switch c.Operator {
		case OpEq:
			q.Builder = q.Builder.Where(sq.Eq{column: c.Value})
		case OpContains:
			q.Builder = q.Builder.Where(sq.ILike{column: "%" + likeEscaper.Replace(fmt.Sprint(c.Value)) + "%"})
		default:
			return Query{}, fmt.Errorf("operator[%s] is not supported", c.Operator)
		}
	}

	for _, relation := range s.includes {
		if !slices.Contains(m.Relations, relation) {
			return Query{}, fmt.Errorf("relation[%s] is not supported", relation)
		}
		if !slices.Contains(q.Includes, relation) {
			q.Includes = append(q.Includes, relation)
		}
	}

	for _, o := range s.orderBy {
		column, err := m.column(o.Field)
		if err != nil {
			return Query{}, err
		}

		if o.Desc {
			q.Builder = q.Builder.OrderBy(column + " DESC")
		} else {
			q.Builder = q.Builder.OrderBy(column + " ASC")
		}
	}

	if s.paged {
		// stable pages need a total order
		if len(s.orderBy) == 0 && m.PrimaryKey != "" {
			q.Builder = q.Builder.OrderBy(m.PrimaryKey + " ASC")
		}

		q.Builder = q.Builder.Offset(s.skip).Limit(s.take)
	}

	return q, nil
}

func (m Mapping) column(field string) (string, error) {
	column, ok := m.Columns[field]
	if !ok {
		return "", fmt.Errorf("field[%s] is not queryable", field)
	}

	return column, nil
}
