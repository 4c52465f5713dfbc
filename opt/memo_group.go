package opt

import (
	"github.com/cockroachdb/redact"
)

// GroupID identifies a memo group. Groups have numbers greater than 0; a
// GroupID of 0 indicates an unknown group.
type GroupID uint32

var _ redact.SafeValue = GroupID(0)

// SafeValue implements the redact.SafeValue interface.
func (GroupID) SafeValue() {}

// memoGroup stores a set of logically equivalent expressions. See the comments
// on Memo for the definition of logical equivalency.
type memoGroup struct {
	// ID (a.k.a. index) of the group within the memo.
	id GroupID

	// logical is the set of logical properties that all memo expressions in
	// the group share.
	logical *LogicalProps

	// Set of logically equivalent expressions that are part of the group, in
	// insertion order.
	exprs []ExprID

	// mergedInto is the group that absorbed this one, or 0.
	mergedInto GroupID

	// winners remembers the lowest cost expression that provides a
	// particular set of physical properties.
	winnersMap map[PhysicalPropsID]int
	winners    []Winner
}

func (g *memoGroup) addExpr(id ExprID) {
	g.exprs = append(g.exprs, id)
}

func (g *memoGroup) removeExpr(id ExprID) {
	for i, e := range g.exprs {
		if e == id {
			g.exprs = append(g.exprs[:i:i], g.exprs[i+1:]...)
			return
		}
	}
}

func (g *memoGroup) clearWinners() {
	g.winnersMap = nil
	g.winners = nil
}

// Winner is the lowest cost way found so far to compute a group with a given
// set of required physical properties. It is either a physical memo
// expression of the group, or an enforcer wrapped around the group itself.
type Winner struct {
	// Expr is the winning memo expression, or 0 if the winner is an enforcer
	// or no candidate has been found.
	Expr ExprID

	// Enforcer is SortOp or ExchangeOp if the winner is an enforcer.
	Enforcer Operator

	// ChildProps holds the properties required of each child group of Expr.
	// An enforcer has a single entry: the properties required of its own
	// group as input.
	ChildProps []PhysicalPropsID

	// Cost is the total cost of the plan rooted at the winner.
	Cost Cost

	// Optimized is set once every candidate for the required properties has
	// been costed.
	Optimized bool
}

// Found returns true if a candidate has been recorded.
func (w *Winner) Found() bool {
	return w.Expr != 0 || w.Enforcer != UnknownOp
}

func (w *Winner) IsEnforcer() bool {
	return w.Enforcer != UnknownOp
}

// beats returns true if the candidate w should replace the existing winner.
// Lower cost wins. Among equal costs a memo expression beats an enforcer, and
// a lower ExprID beats a higher one, so that the choice never depends on the
// order in which candidates were costed.
func (w *Winner) beats(existing *Winner) bool {
	if w.Cost == MaxCost {
		return false
	}
	if !existing.Found() || w.Cost.Less(existing.Cost) {
		return true
	}
	if existing.Cost.Less(w.Cost) {
		return false
	}
	if w.IsEnforcer() != existing.IsEnforcer() {
		return !w.IsEnforcer()
	}
	if w.IsEnforcer() {
		return w.Enforcer < existing.Enforcer
	}
	return w.Expr < existing.Expr
}

// Winner returns the winner of the group for the required properties, or nil
// if the group has not been optimized for them.
func (m *Memo) Winner(g GroupID, required PhysicalPropsID) *Winner {
	mgrp := &m.groups[m.Resolve(g)]
	index, ok := mgrp.winnersMap[required]
	if !ok {
		return nil
	}
	return &mgrp.winners[index]
}

// EnsureWinner returns the winner entry of the group for the required
// properties, creating an empty one with MaxCost if needed.
func (m *Memo) EnsureWinner(g GroupID, required PhysicalPropsID) *Winner {
	if w := m.Winner(g, required); w != nil {
		return w
	}
	mgrp := &m.groups[m.Resolve(g)]
	if mgrp.winnersMap == nil {
		mgrp.winnersMap = make(map[PhysicalPropsID]int)
	}
	index := len(mgrp.winners)
	mgrp.winners = append(mgrp.winners, Winner{Cost: MaxCost})
	mgrp.winnersMap[required] = index
	return &mgrp.winners[index]
}

// RatchetWinner replaces the group's winner for the required properties with
// the candidate if the candidate is better. It returns true if the winner was
// replaced.
func (m *Memo) RatchetWinner(g GroupID, required PhysicalPropsID, candidate *Winner) bool {
	existing := m.EnsureWinner(g, required)
	if !candidate.beats(existing) {
		return false
	}
	optimized := existing.Optimized
	*existing = *candidate
	existing.ChildProps = append([]PhysicalPropsID(nil), candidate.ChildProps...)
	existing.Optimized = optimized
	return true
}

// WinnerProps returns the required property sets the group has winners for,
// in the order they were first requested.
func (m *Memo) WinnerProps(g GroupID) []PhysicalPropsID {
	mgrp := &m.groups[m.Resolve(g)]
	res := make([]PhysicalPropsID, len(mgrp.winners))
	for required, index := range mgrp.winnersMap {
		res[index] = required
	}
	return res
}
