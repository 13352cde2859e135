// Package core holds the data model shared by the Sequencer and the Scheduler:
// table operations, version grants, and per-session state.
package core

import (
	"sort"

	mapset "github.com/deckarep/golang-set"
)

// Operation is the kind of access a transaction declares against one table.
type Operation uint8

const (
	// R is a read access.
	R Operation = iota
	// W is a write access. W subsumes R when both appear for the same table.
	W
)

func (op Operation) String() string {
	if op == W {
		return "W"
	}
	return "R"
}

// TableOp is one table's declared access.
type TableOp struct {
	Table string
	Op    Operation
}

// AccessPattern classifies a TableOps as read-only, write-only, or mixed.
type AccessPattern uint8

const (
	ReadOnly AccessPattern = iota
	WriteOnly
	Mixed
)

func (p AccessPattern) String() string {
	switch p {
	case ReadOnly:
		return "ReadOnly"
	case WriteOnly:
		return "WriteOnly"
	default:
		return "Mixed"
	}
}

// TableOps is a canonicalized set of per-table access declarations: each table
// appears at most once, W subsumes R, and iteration order is sorted by table name.
type TableOps struct {
	ops []TableOp
}

// NewTableOps canonicalizes a raw, possibly-overlapping list of table operations.
func NewTableOps(raw []TableOp) TableOps {
	writes := mapset.NewThreadUnsafeSet()
	reads := mapset.NewThreadUnsafeSet()
	for _, to := range raw {
		if to.Op == W {
			writes.Add(to.Table)
		} else {
			reads.Add(to.Table)
		}
	}
	// W subsumes R: a table present in both collapses to W.
	reads = reads.Difference(writes)

	all := make([]TableOp, 0, writes.Cardinality()+reads.Cardinality())
	for t := range writes.Iter() {
		all = append(all, TableOp{Table: t.(string), Op: W})
	}
	for t := range reads.Iter() {
		all = append(all, TableOp{Table: t.(string), Op: R})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Table < all[j].Table })
	return TableOps{ops: all}
}

// Tables returns the canonical, sorted list of table operations.
func (t TableOps) Tables() []TableOp {
	return t.ops
}

// Len reports the number of distinct tables.
func (t TableOps) Len() int {
	return len(t.ops)
}

// Lookup returns the declared Operation for table, if any.
func (t TableOps) Lookup(table string) (Operation, bool) {
	for _, to := range t.ops {
		if to.Table == table {
			return to.Op, true
		}
	}
	return 0, false
}

// AccessPattern derives the ReadOnly/WriteOnly/Mixed classification.
func (t TableOps) AccessPattern() AccessPattern {
	sawR, sawW := false, false
	for _, to := range t.ops {
		if to.Op == W {
			sawW = true
		} else {
			sawR = true
		}
	}
	switch {
	case sawR && sawW:
		return Mixed
	case sawW:
		return WriteOnly
	default:
		return ReadOnly
	}
}
