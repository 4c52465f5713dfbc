// Package optbuilder builds logical plan trees from YAML query descriptions.
// A description names the tables to join, the conditions to apply and the
// operators to stack on top:
//
//	from: [t1, t2 AS b]
//	where: [t1.k = b.k, b.v > 5]
//	group_by: {columns: [b.v], aggregates: [count_rows() AS n]}
//	select: [b.v, n]
//	limit: {count: 10, order_by: [-n]}
//	order_by: [+b.v]
//	distribution: singleton
//
// order_by and distribution are the physical properties required of the
// result.
package optbuilder

import (
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/cascades/cat"
	"github.com/petermattis/cascades/opt"
	"gopkg.in/yaml.v3"
)

// Query is a query description.
type Query struct {
	From         []string `yaml:"from"`
	Where        []string `yaml:"where"`
	GroupBy      *GroupBy `yaml:"group_by"`
	Select       []string `yaml:"select"`
	Limit        *Limit   `yaml:"limit"`
	OrderBy      []string `yaml:"order_by"`
	Distribution string   `yaml:"distribution"`
}

type GroupBy struct {
	Columns    []string `yaml:"columns"`
	Aggregates []string `yaml:"aggregates"`
}

type Limit struct {
	Count   int64    `yaml:"count"`
	OrderBy []string `yaml:"order_by"`
}

// ParseQuery reads a query description.
func ParseQuery(r io.Reader) (*Query, error) {
	var q Query
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&q); err != nil {
		return nil, errors.Wrap(err, "parsing query")
	}
	if len(q.From) == 0 {
		return nil, errors.New("query has no tables")
	}
	return &q, nil
}

var cmpOpMap = map[string]opt.CmpOp{
	"=":  opt.EqOp,
	"!=": opt.NeOp,
	"<":  opt.LtOp,
	"<=": opt.LeOp,
	">":  opt.GtOp,
	">=": opt.GeOp,
}

var aggFuncMap = map[string]opt.AggFunc{
	"count_rows": opt.CountRowsAgg,
	"count":      opt.CountAgg,
	"sum":        opt.SumAgg,
	"min":        opt.MinAgg,
	"max":        opt.MaxAgg,
}

// Builder resolves the names of a query description against the metadata of
// a compilation.
type Builder struct {
	md    *opt.Metadata
	scope scope
}

// Build adds the tables of the query to the metadata and returns the logical
// tree of the query and the physical properties required of its result.
func Build(md *opt.Metadata, q *Query) (*opt.Tree, *opt.PhysicalProps, error) {
	b := &Builder{md: md}
	return b.build(q)
}

func (b *Builder) build(q *Query) (*opt.Tree, *opt.PhysicalProps, error) {
	tables := make([]opt.TableID, len(q.From))
	for i, ref := range q.From {
		name, alias := parseTableRef(ref)
		tab, err := b.md.AddTableByName(cat.TableName(name), alias)
		if err != nil {
			return nil, nil, err
		}
		tables[i] = tab
		b.scope.addTable(b.md, tab)
	}

	filters := make([]opt.ScalarExpr, len(q.Where))
	for i, cond := range q.Where {
		var err error
		if filters[i], err = b.buildComparison(cond); err != nil {
			return nil, nil, err
		}
	}
	t := opt.JoinTree(b.md, tables, filters...)

	if q.GroupBy != nil {
		var err error
		if t, err = b.buildGroupBy(t, q.GroupBy); err != nil {
			return nil, nil, err
		}
	}

	if len(q.Select) > 0 {
		cols, err := b.resolveColumns(q.Select)
		if err != nil {
			return nil, nil, err
		}
		t = opt.Project(t, cols)
	}

	if q.Limit != nil {
		ordering, err := b.buildOrdering(q.Limit.OrderBy)
		if err != nil {
			return nil, nil, err
		}
		t = opt.Limit(t, q.Limit.Count, ordering)
	}

	required := &opt.PhysicalProps{}
	var err error
	if required.Ordering, err = b.buildOrdering(q.OrderBy); err != nil {
		return nil, nil, err
	}
	if required.Distribution, err = b.buildDistribution(q.Distribution); err != nil {
		return nil, nil, err
	}
	return t, required, nil
}

// parseTableRef splits "name AS alias".
func parseTableRef(ref string) (name, alias string) {
	fields := strings.Fields(ref)
	if len(fields) == 3 && strings.EqualFold(fields[1], "as") {
		return fields[0], fields[2]
	}
	return strings.TrimSpace(ref), ""
}

// buildComparison parses "<column> <op> <column or integer>".
func (b *Builder) buildComparison(s string) (opt.ScalarExpr, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return nil, errors.Newf("cannot parse condition %q", s)
	}
	op, ok := cmpOpMap[fields[1]]
	if !ok {
		return nil, errors.Newf("unknown comparison %q in %q", fields[1], s)
	}
	left, err := b.buildOperand(fields[0])
	if err != nil {
		return nil, err
	}
	right, err := b.buildOperand(fields[2])
	if err != nil {
		return nil, err
	}
	return opt.Cmp(op, left, right), nil
}

func (b *Builder) buildOperand(s string) (opt.ScalarExpr, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return opt.Int(v), nil
	}
	col, err := b.scope.resolve(s)
	if err != nil {
		return nil, err
	}
	return opt.Col(col), nil
}

func (b *Builder) resolveColumns(names []string) (opt.ColSet, error) {
	var cols opt.ColSet
	for _, name := range names {
		col, err := b.scope.resolve(name)
		if err != nil {
			return opt.ColSet{}, err
		}
		cols.Add(int(col))
	}
	return cols, nil
}

// buildGroupBy builds the grouping and aggregations. Aggregates are written
// as "func(column) AS name" or "count_rows() AS name"; the names become
// resolvable by the operators above.
func (b *Builder) buildGroupBy(input *opt.Tree, def *GroupBy) (*opt.Tree, error) {
	grouping, err := b.resolveColumns(def.Columns)
	if err != nil {
		return nil, err
	}
	aggs := make([]opt.Aggregation, len(def.Aggregates))
	for i, s := range def.Aggregates {
		expr, name, ok := cutAlias(s)
		open := strings.IndexByte(expr, '(')
		if !ok || open < 0 || !strings.HasSuffix(expr, ")") {
			return nil, errors.Newf("cannot parse aggregate %q", s)
		}
		fn, ok := aggFuncMap[expr[:open]]
		if !ok {
			return nil, errors.Newf("unknown aggregate function %q", expr[:open])
		}
		aggs[i].Func = fn
		if arg := strings.TrimSpace(expr[open+1 : len(expr)-1]); arg != "" {
			if aggs[i].Arg, err = b.scope.resolve(arg); err != nil {
				return nil, err
			}
		}
		aggs[i].Col = b.md.AddColumn(name)
	}
	for i := range aggs {
		b.scope.add(b.md.ColumnLabel(aggs[i].Col), aggs[i].Col)
	}
	return opt.GroupBy(input, grouping, aggs...), nil
}

func cutAlias(s string) (expr, alias string, ok bool) {
	fields := strings.Fields(s)
	if len(fields) != 3 || !strings.EqualFold(fields[1], "as") {
		return "", "", false
	}
	return fields[0], fields[2], true
}

// buildOrdering parses columns prefixed with + (ascending, the default) or -
// (descending).
func (b *Builder) buildOrdering(cols []string) (opt.Ordering, error) {
	var ordering opt.Ordering
	for _, s := range cols {
		descending := strings.HasPrefix(s, "-")
		col, err := b.scope.resolve(strings.TrimLeft(s, "+-"))
		if err != nil {
			return nil, err
		}
		ordering = append(ordering, opt.MakeOrderingColumn(col, descending))
	}
	return ordering, nil
}

// buildDistribution parses "any", "singleton" or "hash(col, ...)".
func (b *Builder) buildDistribution(s string) (opt.Distribution, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "any":
		return opt.Distribution{}, nil
	case s == "singleton":
		return opt.Distribution{Kind: opt.SingletonDistribution}, nil
	case strings.HasPrefix(s, "hash(") && strings.HasSuffix(s, ")"):
		var names []string
		for _, name := range strings.Split(s[len("hash("):len(s)-1], ",") {
			names = append(names, strings.TrimSpace(name))
		}
		cols, err := b.resolveColumns(names)
		if err != nil {
			return opt.Distribution{}, err
		}
		return opt.Distribution{Kind: opt.HashDistribution, Cols: cols}, nil
	}
	return opt.Distribution{}, errors.Newf("unknown distribution %q", s)
}
