package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/petermattis/cascades/cat"
	"github.com/petermattis/cascades/exec"
	"github.com/petermattis/cascades/opt"
	"github.com/petermattis/cascades/opt/xform"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var joinFlags struct {
	budget  int
	filters bool
	memo    bool
	dot     bool
}

var joinCmd = &cobra.Command{
	Use:   "join <table>,<table>,...",
	Short: "explore the join orders of a left-deep join",
	Long: `
Explore every join order of a left-deep inner join of the named tables and
compare the size of the memo with the size of the complete join space. Table
i has 100*i rows.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names := strings.Split(args[0], ",")
		return runJoin(cmd.OutOrStdout(), names)
	},
}

func init() {
	f := joinCmd.Flags()
	f.IntVar(&joinFlags.budget, "budget", xform.OptimizeAll, "maximum number of exploration tasks")
	f.BoolVar(&joinFlags.filters, "filters", true, "join consecutive tables on k = v")
	f.BoolVar(&joinFlags.memo, "memo", false, "print the memo")
	f.BoolVar(&joinFlags.dot, "dot", false, "print the memo in graphviz format")
}

// joinTableDef defines table i of a join: a key k and a value v, with
// statistics that grow with i.
func joinTableDef(name string, i int) cat.TableDef {
	return cat.TableDef{
		Name: name,
		Columns: []cat.ColumnDef{
			{Name: "k", Type: "int"},
			{Name: "v", Type: "int"},
		},
		PrimaryKey: []string{"k"},
		Stats: &cat.StatsDef{
			Rows: float64(100 * i),
			Columns: map[string]cat.ColumnStatsDef{
				"k": {Distinct: float64(100 * i)},
				"v": {Distinct: float64(10 * i)},
			},
		},
	}
}

func runJoin(w io.Writer, names []string) error {
	e := exec.NewEngine(cat.NewCatalog(), logrus.StandardLogger())
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
		def := joinTableDef(names[i], i+1)
		if _, err := e.CreateTable(&def); err != nil {
			return err
		}
	}

	md := opt.NewMetadata(e.Catalog())
	tables := make([]opt.TableID, len(names))
	for i, name := range names {
		tab, err := md.AddTableByName(cat.TableName(name), "")
		if err != nil {
			return err
		}
		tables[i] = tab
	}

	var filters []opt.ScalarExpr
	if joinFlags.filters {
		for i := 1; i < len(tables); i++ {
			k, _ := md.Table(tables[i-1]).ColumnOrdinal("k")
			v, _ := md.Table(tables[i]).ColumnOrdinal("v")
			filters = append(filters, opt.Eq(md.TableColumn(tables[i-1], k), md.TableColumn(tables[i], v)))
		}
	}
	tree := opt.JoinTree(md, tables, filters...)

	cfg := xform.DefaultConfig()
	cfg.MaxExploreTasks = joinFlags.budget
	o, err := xform.NewOptimizer(md, nil, cfg)
	if err != nil {
		return err
	}
	plan, err := o.Optimize(context.Background(), tree, nil)
	if err != nil {
		return errors.Wrap(err, "optimizing join")
	}

	mem := o.Memo()
	if joinFlags.dot {
		fmt.Fprint(w, mem.Dot())
		return nil
	}
	if joinFlags.memo {
		fmt.Fprint(w, mem.String())
	}

	s := mem.Stats()
	expected := opt.ExpectedJoinSpace(len(tables))
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"", "memo", "join space"})
	table.Append([]string{"groups", strconv.Itoa(s.Groups), strconv.Itoa(expected.Groups)})
	table.Append([]string{"logical", strconv.Itoa(s.LogicalExprs), strconv.Itoa(expected.LogicalExprs)})
	table.Append([]string{"physical", strconv.Itoa(s.PhysicalExprs), strconv.Itoa(expected.PhysicalExprs)})
	table.Append([]string{"plans",
		strconv.FormatInt(mem.PlanCount(o.Root()), 10), strconv.FormatInt(expected.Plans, 10)})
	table.Render()
	if o.Truncated() {
		fmt.Fprintln(w, "exploration truncated")
	}

	fmt.Fprintf(w, "\n%s", plan)
	return nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	return f, errors.Wrapf(err, "opening %s", path)
}
