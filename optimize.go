package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/cascades/cat"
	"github.com/petermattis/cascades/exec"
	"github.com/petermattis/cascades/opt"
	"github.com/petermattis/cascades/opt/optbuilder"
	"github.com/petermattis/cascades/opt/rules"
	"github.com/petermattis/cascades/opt/xform"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var optimizeFlags struct {
	catalog string
	query   string
	config  string
	rules   string
	memo    bool
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize --catalog=<schema.yaml> --query=<query.yaml>",
	Short: "optimize a query",
	Long: `
Load the tables of a YAML schema, optimize a YAML query against them and print
the lowest cost plan. Optimizer settings are read from --config.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runOptimize(ctx, cmd.OutOrStdout())
	},
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVar(&optimizeFlags.catalog, "catalog", "", "YAML schema file")
	f.StringVar(&optimizeFlags.query, "query", "", "YAML query file")
	f.StringVar(&optimizeFlags.config, "config", "", "YAML optimizer config file")
	f.StringVar(&optimizeFlags.rules, "rules", "default", "rule set (default, all)")
	f.BoolVar(&optimizeFlags.memo, "memo", false, "print the memo")
	_ = optimizeCmd.MarkFlagRequired("catalog")
	_ = optimizeCmd.MarkFlagRequired("query")
}

func loadCatalog(path string) (*cat.Catalog, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	e := exec.NewEngine(cat.NewCatalog(), logrus.StandardLogger())
	if _, err := e.LoadSchema(f); err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return e.Catalog(), nil
}

func loadQuery(path string) (*optbuilder.Query, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return optbuilder.ParseQuery(f)
}

func loadConfig(path string) (xform.Config, error) {
	if path == "" {
		return xform.DefaultConfig(), nil
	}
	f, err := openFile(path)
	if err != nil {
		return xform.Config{}, err
	}
	defer f.Close()
	return xform.LoadConfig(f)
}

func ruleSet(name string) (*opt.RuleSet, error) {
	switch name {
	case "default":
		return rules.Default(), nil
	case "all":
		return rules.All(), nil
	}
	return nil, errors.Newf("unknown rule set %q", name)
}

func runOptimize(ctx context.Context, w io.Writer) error {
	catalog, err := loadCatalog(optimizeFlags.catalog)
	if err != nil {
		return err
	}
	q, err := loadQuery(optimizeFlags.query)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(optimizeFlags.config)
	if err != nil {
		return err
	}
	rs, err := ruleSet(optimizeFlags.rules)
	if err != nil {
		return err
	}

	md := opt.NewMetadata(catalog)
	tree, required, err := optbuilder.Build(md, q)
	if err != nil {
		return err
	}
	o, err := xform.NewOptimizer(md, rs, cfg)
	if err != nil {
		return err
	}
	plan, err := o.Optimize(ctx, tree, required)
	if err != nil {
		return err
	}

	if optimizeFlags.memo {
		fmt.Fprint(w, o.Memo().String())
		fmt.Fprintln(w)
	}
	fmt.Fprint(w, plan)
	if o.Truncated() {
		fmt.Fprintln(w, "exploration truncated")
	}
	return nil
}
