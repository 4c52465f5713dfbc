// Package rules holds the bundled rule catalog: join reordering
// transformations and one implementation rule per logical operator.
package rules

import (
	"github.com/petermattis/cascades/opt"
)

// Rule names, usable with opt.RuleSet.Disable and the disabled_rules
// configuration setting.
const (
	JoinCommutativityName  = "JoinCommutativity"
	JoinAssociativityName  = "JoinAssociativity"
	ImplementScanName      = "ImplementScan"
	ImplementSelectName    = "ImplementSelect"
	ImplementProjectName   = "ImplementProject"
	ImplementHashJoinName  = "ImplementHashJoin"
	ImplementMergeJoinName = "ImplementMergeJoin"
	ImplementGroupByName   = "ImplementGroupBy"
	ImplementLimitName     = "ImplementLimit"
)

// Transformations returns the exploration rules. Together they enumerate
// every join order, including those that need cross products.
func Transformations() []*opt.Rule {
	return []*opt.Rule{
		JoinCommutativity(),
		JoinAssociativity(),
	}
}

// Implementations returns exactly one implementation rule per logical
// operator.
func Implementations() []*opt.Rule {
	return []*opt.Rule{
		ImplementScan(),
		ImplementSelect(),
		ImplementProject(),
		ImplementHashJoin(),
		ImplementGroupBy(),
		ImplementLimit(),
	}
}

// Default returns the default rule catalog. It does not include the merge
// join rule, so the size of a fully explored join memo matches the closed
// forms of opt.ExpectedJoinSpace.
func Default() *opt.RuleSet {
	return mustRuleSet(append(Transformations(), Implementations()...))
}

// All returns every bundled rule, including merge join.
func All() *opt.RuleSet {
	rules := append(Transformations(), Implementations()...)
	return mustRuleSet(append(rules, ImplementMergeJoin()))
}

func mustRuleSet(rules []*opt.Rule) *opt.RuleSet {
	rs, err := opt.NewRuleSet(rules...)
	if err != nil {
		panic(err)
	}
	return rs
}
