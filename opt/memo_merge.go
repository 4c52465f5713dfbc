package opt

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/petermattis/cascades/util"
)

// MergeGroups merges two groups that have been proven equivalent and returns
// the surviving group. The group with the lower ID survives. All expressions
// of the other group are moved into the survivor, and every expression in the
// memo that referenced the absorbed group is rewritten to reference the
// survivor. A rewrite can make two expressions identical; a duplicate within
// a group is absorbed, and a duplicate across groups proves those groups
// equivalent as well, so merging continues until no collisions remain.
// Winners of the survivor and of every group above it are discarded, since
// their costs may be stale.
//
// Merging groups that have already been merged is a no-op.
func (m *Memo) MergeGroups(a, b GroupID) GroupID {
	type mergePair struct{ a, b GroupID }
	work := []mergePair{{a, b}}
	for len(work) > 0 {
		p := work[0]
		work = work[1:]

		survivor, victim := m.Resolve(p.a), m.Resolve(p.b)
		if survivor == victim {
			continue
		}
		if victim < survivor {
			survivor, victim = victim, survivor
		}
		m.mergeInto(survivor, victim, func(x, y GroupID) {
			work = append(work, mergePair{x, y})
		})
	}
	return m.Resolve(a)
}

// mergeInto moves the victim group into the survivor. Further merges implied
// by fingerprint collisions are passed to queue.
func (m *Memo) mergeInto(survivor, victim GroupID, queue func(a, b GroupID)) {
	sgrp, vgrp := &m.groups[survivor], &m.groups[victim]
	if !sgrp.logical.OutputCols.Equals(vgrp.logical.OutputCols) {
		panic(errors.AssertionFailedf(
			"cannot merge group %d %s into group %d %s",
			victim, redact.Safe(vgrp.logical.OutputCols.String()),
			survivor, redact.Safe(sgrp.logical.OutputCols.String()),
		))
	}

	for _, id := range vgrp.exprs {
		m.exprs[id].group = survivor
		sgrp.addExpr(id)
	}
	vgrp.exprs = nil
	vgrp.mergedInto = survivor
	vgrp.clearWinners()
	m.version++

	// Rewrite every reference to the victim. The arena is scanned in ID order
	// so that rewrites, and therefore which duplicate is absorbed, are
	// deterministic.
	for i := 1; i < len(m.exprs); i++ {
		e := &m.exprs[i]
		if e.absorbed {
			continue
		}
		rewritten := false
		for j, c := range e.children {
			if c == victim {
				e.children[j] = survivor
				rewritten = true
			}
		}
		if !rewritten {
			continue
		}

		id := ExprID(i)
		if m.exprMap[e.fp] == id {
			delete(m.exprMap, e.fp)
		}
		e.fp = makeFingerprint(e.op, e.private, e.children)
		e.applied = util.FastIntSet{}

		selfRef := false
		for _, c := range e.children {
			if c == e.group {
				selfRef = true
			}
		}
		if selfRef {
			// The expression now computes its own group from itself, which
			// can never be part of a plan.
			m.absorbExpr(id)
			continue
		}

		if other, ok := m.exprMap[e.fp]; ok {
			m.absorbExpr(id)
			if g := m.exprs[other].group; g != e.group {
				queue(g, e.group)
			}
			continue
		}
		m.exprMap[e.fp] = id
	}

	m.invalidateWinners(survivor)
	if m.mergeHook != nil {
		m.mergeHook(survivor, victim)
	}
}

func (m *Memo) absorbExpr(id ExprID) {
	e := &m.exprs[id]
	e.absorbed = true
	m.groups[e.group].removeExpr(id)
	m.version++
}

// invalidateWinners discards the winners of g and of every group that
// transitively has g as a child.
func (m *Memo) invalidateWinners(g GroupID) {
	stale := make([]bool, len(m.groups))
	stale[g] = true
	for changed := true; changed; {
		changed = false
		for i := 1; i < len(m.exprs); i++ {
			e := &m.exprs[i]
			if e.absorbed || stale[e.group] {
				continue
			}
			for _, c := range e.children {
				if stale[c] {
					stale[e.group] = true
					changed = true
					break
				}
			}
		}
	}
	for i := range stale {
		if stale[i] {
			m.groups[i].clearWinners()
		}
	}
}
