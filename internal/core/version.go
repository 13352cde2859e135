package core

import "sort"

// TxTableVN is one table's version grant within a transaction: "this transaction
// owns version Vn of Table under Op semantics."
type TxTableVN struct {
	Table string    `json:"table"`
	Vn    uint64    `json:"vn"`
	Op    Operation `json:"op"`
}

// TxVN is the set of version grants a single transaction holds, issued by the
// Sequencer at BeginTx. Tables within a TxVN are unique.
type TxVN struct {
	TxName     string      `json:"tx_name,omitempty"`
	TxTableVNs []TxTableVN `json:"txtablevns"`
}

// Grant returns the TxTableVN for table, if the transaction declared it.
func (t TxVN) Grant(table string) (TxTableVN, bool) {
	for _, g := range t.TxTableVNs {
		if g.Table == table {
			return g, true
		}
	}
	return TxTableVN{}, false
}

// TableOps reconstructs the canonical TableOps this TxVN was assigned for.
func (t TxVN) TableOps() TableOps {
	raw := make([]TableOp, 0, len(t.TxTableVNs))
	for _, g := range t.TxTableVNs {
		raw = append(raw, TableOp{Table: g.Table, Op: g.Op})
	}
	return NewTableOps(raw)
}

// DbTableVN is a replica's current visible version for one table: "this replica
// has applied all writes with version < Vn and is ready to apply or read version Vn."
type DbTableVN struct {
	Table string `json:"table"`
	Vn    uint64 `json:"vn"`
}

// DbVN is one replica's current version frontier, table -> vn. A table missing
// from the map defaults to version 0.
type DbVN struct {
	versions map[string]uint64
}

// NewDbVN returns an empty, all-zero DbVN.
func NewDbVN() *DbVN {
	return &DbVN{versions: make(map[string]uint64)}
}

// Get returns the current version for table, defaulting to 0.
func (d *DbVN) Get(table string) uint64 {
	return d.versions[table]
}

// set assigns the version for table directly. Callers must never move it backwards.
func (d *DbVN) set(table string, vn uint64) {
	d.versions[table] = vn
}

// Snapshot returns a sorted copy of the table -> vn map, safe to hand to callers
// outside the guard protecting this DbVN.
func (d *DbVN) Snapshot() []DbTableVN {
	out := make([]DbTableVN, 0, len(d.versions))
	for t, vn := range d.versions {
		out = append(out, DbTableVN{Table: t, Vn: vn})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

// Ready reports whether this replica may execute a statement touching ops under
// the grants in txvn: a read needs the replica at or past the granted version,
// a write needs it at exactly the granted version.
//
// If ops names a table with no corresponding grant in txvn, readiness cannot be
// evaluated and ready is false with hasGrant false.
func (d *DbVN) Ready(ops TableOps, txvn TxVN) (ready bool, hasGrant bool) {
	for _, to := range ops.Tables() {
		g, found := txvn.Grant(to.Table)
		if !found {
			return false, false
		}
		cur := d.Get(to.Table)
		if g.Op == R {
			if cur < g.Vn {
				return false, true
			}
		} else {
			if cur != g.Vn {
				return false, true
			}
		}
	}
	return true, true
}

// Release advances this replica's DbVN past every table granted in txvn:
// DbVN[t] := max(DbVN[t], vn+1). Both commit and abort call this identically,
// since the version number was consumed regardless of outcome.
func (d *DbVN) Release(txvn TxVN) {
	for _, g := range txvn.TxTableVNs {
		next := g.Vn + 1
		if d.Get(g.Table) < next {
			d.set(g.Table, next)
		}
	}
}
