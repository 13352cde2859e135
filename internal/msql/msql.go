// Package msql is the internal statement form the scheduler operates on: the
// result of either decoding a RequestMsql wire message directly, or parsing a
// RequestMsqlText string against the textual grammar.
package msql

import "verscheduler/internal/core"

// Msql is the tagged union { BeginTx, Query, EndTx } of client statements.
type Msql interface {
	isMsql()
}

// BeginTx declares the TableOps a transaction will touch, and optionally names it.
type BeginTx struct {
	TxName   string
	TableOps core.TableOps
}

func (BeginTx) isMsql() {}

// Query is one UPDATE or SELECT statement, plus the subset of the transaction's
// tables it touches (or, for the single-read fast path, a TableOps with no
// enclosing transaction at all).
type Query struct {
	QueryText string
	TableOps  core.TableOps
}

func (Query) isMsql() {}

// EndTx closes the currently open transaction, committing or aborting.
type EndTx struct {
	TxName string
	Commit bool
}

func (EndTx) isMsql() {}
