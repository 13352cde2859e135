package core

import (
	"fmt"

	"github.com/viney-shih/go-lock"
)

// ConnectionState holds at most one in-flight TxVN for one client session. It is
// owned by exactly one session and mutated only while the session's exclusive
// guard is held. Contention on the guard is effectively zero, since the session
// protocol only ever has one statement in flight at a time.
type ConnectionState struct {
	mu      lock.Mutex
	curTxVN *TxVN
}

// NewConnectionState returns a session state with no open transaction.
func NewConnectionState() *ConnectionState {
	return &ConnectionState{mu: lock.NewCASMutex()}
}

// Current returns a read-only view of the in-flight TxVN, or nil if none.
func (c *ConnectionState) Current() *TxVN {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curTxVN
}

// Insert stores a newly-assigned TxVN. Returns ErrProtocolMisuse if the slot is
// already occupied (a BeginTx arrived while a transaction was already open).
func (c *ConnectionState) Insert(txvn TxVN) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.curTxVN != nil {
		return fmt.Errorf("%w: previous transaction not finished yet", ErrProtocolMisuse)
	}
	c.curTxVN = &txvn
	return nil
}

// Take removes and returns the in-flight TxVN. Returns ErrProtocolMisuse if the
// slot is empty (an EndTx arrived with no open transaction).
func (c *ConnectionState) Take() (TxVN, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.curTxVN == nil {
		return TxVN{}, fmt.Errorf("%w: no transaction is open", ErrProtocolMisuse)
	}
	txvn := *c.curTxVN
	c.curTxVN = nil
	return txvn, nil
}
