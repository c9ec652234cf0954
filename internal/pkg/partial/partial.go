// Package partial builds the column list of an INSERT or UPDATE from a record
// whose fields may be absent. Absent fields are dropped so that an UPDATE never
// overwrites an existing value with NULL and an INSERT leaves column defaults alone.
package partial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"get5-api/internal/pkg/optional"
)

// ErrEmptySet is returned when SQL is requested for a set with no columns.
var ErrEmptySet = errors.New("partial: no fields to write")

type field struct {
	column string
	value  any
}

// Set is an ordered collection of column/value pairs.
// The zero value is an empty set ready to use.
type Set struct {
	fields []field
}

// New returns an empty set.
func New() *Set {
	return &Set{}
}

// Add appends column when v is present and ignores it otherwise.
// Adding a column that is already in the set replaces its value in place.
func (s *Set) Add(column string, v optional.Maybe) *Set {
	if v == nil || !v.IsPresent() {
		return s
	}
	return s.Put(column, v.Any())
}

// Put appends column unconditionally.
func (s *Set) Put(column string, value any) *Set {
	for i := range s.fields {
		if s.fields[i].column == column {
			s.fields[i].value = value
			return s
		}
	}
	s.fields = append(s.fields, field{column: column, value: value})
	return s
}

// Len returns the number of columns in the set.
func (s *Set) Len() int {
	return len(s.fields)
}

// Empty reports whether the set has no columns.
func (s *Set) Empty() bool {
	return len(s.fields) == 0
}

// Columns returns the column names in insertion order.
func (s *Set) Columns() []string {
	cols := make([]string, len(s.fields))
	for i, f := range s.fields {
		cols[i] = f.column
	}
	return cols
}

// Args returns the values in insertion order.
func (s *Set) Args() []any {
	args := make([]any, len(s.fields))
	for i, f := range s.fields {
		args[i] = f.value
	}
	return args
}

// Assignments renders the SET list of an UPDATE statement.
// Placeholders start at $offset+1, so callers can put WHERE arguments
// after the returned args.
func (s *Set) Assignments(offset int) (string, []any, error) {
	if s.Empty() {
		return "", nil, ErrEmptySet
	}

	var b strings.Builder
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = $%d", pgx.Identifier{f.column}.Sanitize(), offset+i+1)
	}
	return b.String(), s.Args(), nil
}

// InsertColumns renders the column and VALUES lists of an INSERT statement,
// e.g. `("a", "b") VALUES ($1, $2)`.
func (s *Set) InsertColumns() (string, []any, error) {
	if s.Empty() {
		return "", nil, ErrEmptySet
	}

	cols := make([]string, len(s.fields))
	marks := make([]string, len(s.fields))
	for i, f := range s.fields {
		cols[i] = pgx.Identifier{f.column}.Sanitize()
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	clause := fmt.Sprintf("(%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(marks, ", "))
	return clause, s.Args(), nil
}
