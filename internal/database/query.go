package database

import (
	"strconv"
	"strings"

	"github.com/Rosevil15/TPMSS-sub001/internal/location"
)

// Dialect controls placeholder syntax for the configured driver.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// DialectFor maps a DB_DRIVER value to its dialect.
func DialectFor(driver string) Dialect {
	if driver == "sqlite" {
		return SQLite
	}
	return Postgres
}

func (d Dialect) Name() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

type condition struct {
	column string
	in     bool
	values []any
}

type order struct {
	column string
	desc   bool
}

// Query is a collection-scoped read: column list, equality and membership
// filters, and ordering. Column names come from this package's constants and
// are never taken from user input; values are always bound.
type Query struct {
	table   string
	columns []string
	conds   []condition
	orders  []order
}

// From starts a query over table.
func From(table string) *Query {
	return &Query{table: table}
}

func (q *Query) Table() string { return q.table }

// Select sets an explicit column list. No call selects all columns.
func (q *Query) Select(columns ...string) *Query {
	q.columns = append([]string(nil), columns...)
	return q
}

// Where adds column = value.
func (q *Query) Where(column string, value any) *Query {
	q.conds = append(q.conds, condition{column: column, values: []any{value}})
	return q
}

// WhereIn adds column IN (values). An empty list matches no rows.
func (q *Query) WhereIn(column string, values []string) *Query {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	q.conds = append(q.conds, condition{column: column, in: true, values: vs})
	return q
}

// OrderBy appends an ordering term.
func (q *Query) OrderBy(column string, desc bool) *Query {
	q.orders = append(q.orders, order{column: column, desc: desc})
	return q
}

// Scope narrows the query to the filter's location. A filter that does not
// narrow leaves the query exactly as it was.
func (q *Query) Scope(f location.Filter) *Query {
	column, value, ok := f.Narrowing()
	if !ok {
		return q
	}
	return q.Where(column, value)
}

// Clone returns an independent copy.
func (q *Query) Clone() *Query {
	c := &Query{table: q.table}
	c.columns = append([]string(nil), q.columns...)
	c.conds = append([]condition(nil), q.conds...)
	c.orders = append([]order(nil), q.orders...)
	return c
}

// MaxInValues bounds the bind parameters a single IN list may carry. Larger
// sets are read in batches, well under the SQLite (32766) and Postgres
// (65535) parameter limits.
const MaxInValues = 1000

// Batches splits every IN list longer than size into consecutive chunks and
// returns one query per combination. A query with no oversized list is
// returned as is. Chunks are disjoint, so counts add up across batches; an
// ORDER BY holds within each batch only.
func (q *Query) Batches(size int) []*Query {
	if size <= 0 {
		size = MaxInValues
	}
	for i, c := range q.conds {
		if !c.in || len(c.values) <= size {
			continue
		}
		var out []*Query
		for start := 0; start < len(c.values); start += size {
			end := min(start+size, len(c.values))
			b := q.Clone()
			b.conds[i] = condition{column: c.column, in: true, values: c.values[start:end]}
			out = append(out, b.Batches(size)...)
		}
		return out
	}
	return []*Query{q}
}

// Build renders a SELECT statement and its arguments.
func (q *Query) Build(d Dialect) (string, []any) {
	cols := "*"
	if len(q.columns) > 0 {
		cols = strings.Join(q.columns, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(q.table)
	args := q.writeWhere(&sb, d)

	if len(q.orders) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range q.orders {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(o.column)
			if o.desc {
				sb.WriteString(" DESC")
			} else {
				sb.WriteString(" ASC")
			}
		}
	}
	return sb.String(), args
}

// BuildCount renders an exact row count for the same filters.
func (q *Query) BuildCount(d Dialect) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(q.table)
	args := q.writeWhere(&sb, d)
	return sb.String(), args
}

func (q *Query) writeWhere(sb *strings.Builder, d Dialect) []any {
	if len(q.conds) == 0 {
		return nil
	}

	var args []any
	sb.WriteString(" WHERE ")
	for i, c := range q.conds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		if !c.in {
			args = append(args, c.values[0])
			sb.WriteString(c.column)
			sb.WriteString(" = ")
			sb.WriteString(d.Placeholder(len(args)))
			continue
		}
		if len(c.values) == 0 {
			sb.WriteString("1 = 0")
			continue
		}
		sb.WriteString(c.column)
		sb.WriteString(" IN (")
		for j, v := range c.values {
			if j > 0 {
				sb.WriteString(", ")
			}
			args = append(args, v)
			sb.WriteString(d.Placeholder(len(args)))
		}
		sb.WriteString(")")
	}
	return args
}
