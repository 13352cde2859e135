package core

import "errors"

// Error kinds surfaced to the client. These are sentinel values, not exception
// classes: match them with errors.Is and wrap them with fmt.Errorf("...: %w").
var (
	// ErrProtocolMisuse: double-begin, end-without-begin, query-without-tx when a
	// transaction is required. The session continues.
	ErrProtocolMisuse = errors.New("protocol misuse")

	// ErrMalformedQuery: a single Query mixed R and W access. Fatal to that
	// statement only.
	ErrMalformedQuery = errors.New("malformed query")

	// ErrMissingGrant: a query touches a table with no corresponding grant in the
	// transaction's TxVN, i.e. a table outside the declared set. Fatal to that
	// statement only.
	ErrMissingGrant = errors.New("missing version grant")

	// ErrSequencerUnavailable: transport failure talking to the Sequencer.
	ErrSequencerUnavailable = errors.New("sequencer unavailable")

	// ErrReplicaUnavailable: transport failure talking to a replica, on a Query
	// or on an EndTx. The transaction remains open on a Query failure.
	ErrReplicaUnavailable = errors.New("replica unavailable")
)

// InvariantViolation marks a broken version-state invariant. These are fatal to
// the process: there is no recoverable action once cluster-wide version state is
// known to be inconsistent, so callers should panic rather than return this.
type InvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return "invariant " + e.Invariant + " violated: " + e.Detail
}

// Assert panics with an InvariantViolation if cond is false.
func Assert(cond bool, invariant, detail string) {
	if !cond {
		panic(&InvariantViolation{Invariant: invariant, Detail: detail})
	}
}
