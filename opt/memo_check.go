package opt

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// MemoStats counts the live contents of a memo.
type MemoStats struct {
	Groups        int
	LogicalExprs  int
	PhysicalExprs int
}

// Stats counts the groups that have not been merged away and the expressions
// that have not been absorbed.
func (m *Memo) Stats() MemoStats {
	var s MemoStats
	for i := 1; i < len(m.groups); i++ {
		if m.groups[i].mergedInto == 0 {
			s.Groups++
		}
	}
	for i := 1; i < len(m.exprs); i++ {
		e := &m.exprs[i]
		if e.absorbed {
			continue
		}
		if e.op.IsLogical() {
			s.LogicalExprs++
		} else {
			s.PhysicalExprs++
		}
	}
	return s
}

// PlanCount returns the number of distinct physical plans rooted at the group:
// the number of ways of choosing one physical expression for the group and,
// recursively, for each of its children. Enforcers are not counted.
func (m *Memo) PlanCount(root GroupID) int64 {
	counts := make(map[GroupID]int64)
	var count func(g GroupID) int64
	count = func(g GroupID) int64 {
		g = m.Resolve(g)
		if c, ok := counts[g]; ok {
			return c
		}
		// Guard against cycles: a group is not a plan of itself.
		counts[g] = 0
		var total int64
		for _, id := range m.groups[g].exprs {
			e := &m.exprs[id]
			if !e.op.IsPhysical() {
				continue
			}
			n := int64(1)
			for _, c := range e.children {
				n *= count(c)
			}
			total += n
		}
		counts[g] = total
		return total
	}
	return count(root)
}

// JoinSpace is the size of a fully explored memo over n base relations
// combined by a commutative and associative join, with one implementation
// per logical expression.
type JoinSpace struct {
	Groups        int
	LogicalExprs  int
	PhysicalExprs int
	Plans         int64
}

// ExpectedJoinSpace computes the join space of n relations in closed form.
// Every non-empty subset of the relations is a group (2^n - 1). Each group of
// k >= 2 relations has one join per ordered split into two non-empty halves
// (2^k - 2); summed over all subsets that is 3^n - 2^(n+1) + 1, plus the n
// scans. The root group has (2n-2)!/(n-1)! plans: the number of ordered
// binary trees with n labeled leaves.
func ExpectedJoinSpace(n int) JoinSpace {
	if n <= 0 {
		return JoinSpace{}
	}
	pow3, pow2 := 1, 1
	for i := 0; i < n; i++ {
		pow3 *= 3
		pow2 *= 2
	}
	logical := pow3 - 2*pow2 + 1 + n
	plans := int64(1)
	for i := int64(n); i <= int64(2*n-2); i++ {
		plans *= i
	}
	return JoinSpace{
		Groups:        pow2 - 1,
		LogicalExprs:  logical,
		PhysicalExprs: logical,
		Plans:         plans,
	}
}

// CheckJoinSpace returns an assertion failure if the memo rooted at root does
// not have the size of a fully explored join over n relations, or if the root
// does not output exactly the given columns.
func CheckJoinSpace(m *Memo, root GroupID, n int, outputCols ColSet) error {
	if cols := m.GroupLogicalProps(root).OutputCols; !cols.Equals(outputCols) {
		return errors.AssertionFailedf(
			"join of %d relations outputs %s, expected %s",
			n, redact.Safe(cols.String()), redact.Safe(outputCols.String()),
		)
	}
	expected := ExpectedJoinSpace(n)
	s := m.Stats()
	actual := JoinSpace{
		Groups:        s.Groups,
		LogicalExprs:  s.LogicalExprs,
		PhysicalExprs: s.PhysicalExprs,
		Plans:         m.PlanCount(root),
	}
	if actual != expected {
		return errors.AssertionFailedf(
			"join space of %d relations: expected %+v, found %+v",
			n, redact.Safe(expected), redact.Safe(actual),
		)
	}
	return nil
}

// CheckInvariants verifies the internal consistency of the memo:
//   - every live expression is indexed under its current fingerprint, belongs
//     to exactly one live group and references only live groups;
//   - absorbed expressions and merged groups hold no members or winners;
//   - every logical member of a group derives the group's output columns;
//   - every winner refers to a live physical member of its group, and every
//     input it depends on has a winner of its own.
func (m *Memo) CheckInvariants() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = CatchOptimizerError(r)
		}
	}()

	members := make(map[ExprID]GroupID)
	for i := 1; i < len(m.groups); i++ {
		g := GroupID(i)
		mgrp := &m.groups[i]
		if mgrp.mergedInto != 0 {
			if len(mgrp.exprs) != 0 || len(mgrp.winners) != 0 {
				return errors.AssertionFailedf("merged group %d still has members or winners", g)
			}
			continue
		}
		if mgrp.logical == nil {
			return errors.AssertionFailedf("group %d has no logical properties", g)
		}
		for _, id := range mgrp.exprs {
			if prev, ok := members[id]; ok {
				return errors.AssertionFailedf("expression %d is a member of groups %d and %d", id, prev, g)
			}
			members[id] = g
		}
	}

	for i := 1; i < len(m.exprs); i++ {
		id := ExprID(i)
		e := &m.exprs[i]
		g, isMember := members[id]
		if e.absorbed {
			if isMember {
				return errors.AssertionFailedf("absorbed expression %d is a member of group %d", id, g)
			}
			continue
		}
		if !isMember || g != e.group {
			return errors.AssertionFailedf("expression %d is not a member of its group %d", id, e.group)
		}
		if fp := makeFingerprint(e.op, e.private, e.children); fp != e.fp || m.exprMap[fp] != id {
			return errors.AssertionFailedf("expression %d is not indexed by its fingerprint", id)
		}
		for _, c := range e.children {
			if m.groups[c].mergedInto != 0 {
				return errors.AssertionFailedf("expression %d references merged group %d", id, c)
			}
		}
		if e.op.IsLogical() {
			props := m.buildProps(e.op, e.private, e.children)
			if !props.OutputCols.Equals(m.groups[g].logical.OutputCols) {
				return errors.AssertionFailedf(
					"expression %d produces %s, but group %d produces %s",
					id, redact.Safe(props.OutputCols.String()),
					g, redact.Safe(m.groups[g].logical.OutputCols.String()),
				)
			}
		}
	}

	for i := 1; i < len(m.groups); i++ {
		g := GroupID(i)
		mgrp := &m.groups[i]
		for j := range mgrp.winners {
			if err := m.checkWinner(g, &mgrp.winners[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Memo) checkWinner(g GroupID, w *Winner) error {
	if !w.Found() {
		return nil
	}
	if w.IsEnforcer() {
		if len(w.ChildProps) != 1 || m.Winner(g, w.ChildProps[0]) == nil {
			return errors.AssertionFailedf("%s winner of group %d has no input winner", w.Enforcer, g)
		}
		return nil
	}
	e := &m.exprs[w.Expr]
	if e.absorbed || e.group != g || !e.op.IsPhysical() {
		return errors.AssertionFailedf("stale winner %d in group %d", w.Expr, g)
	}
	if len(w.ChildProps) != len(e.children) {
		return errors.AssertionFailedf("winner %d in group %d has %d child props", w.Expr, g, len(w.ChildProps))
	}
	for i, c := range e.children {
		if cw := m.Winner(c, w.ChildProps[i]); cw == nil || !cw.Found() {
			return errors.AssertionFailedf("winner %d in group %d has no winner for child group %d", w.Expr, g, c)
		}
	}
	return nil
}
