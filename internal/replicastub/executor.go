// Package replicastub implements the replica side of the scheduler<->replica
// protocol: something a scheduler can forward Exec/EndTx traffic to. Neither
// backend is part of the production scheduler/sequencer core; both exist so
// the dispatcher has a real executor to drive in integration tests.
package replicastub

import (
	"context"
	"regexp"
	"strings"
)

// Executor runs one statement against a backing store and acknowledges one
// EndTx. Implementations need not actually isolate transactions internally,
// since version gating already serializes access to a given table at the
// scheduler layer; the executor's job is just to apply the statement.
type Executor interface {
	Exec(ctx context.Context, queryText string) ([]byte, error)
	EndTx(ctx context.Context, commit bool) error
	Close(ctx context.Context) error
}

var selectRe = regexp.MustCompile(`(?is)^\s*SELECT\b`)

// isSelect reports whether queryText is a read, used by both backends to
// decide whether to run a query (returning rows) or an exec (returning none).
func isSelect(queryText string) bool {
	return selectRe.MatchString(strings.TrimSpace(queryText))
}
