// Package scheduler implements the Scheduler's Dispatcher: the cluster-wide
// DbVNManager, replica selection, wait-on-version, and version release on
// transaction end.
package scheduler

import (
	"context"
	"sort"
	"sync"

	"verscheduler/internal/audit"
	"verscheduler/internal/core"
	"verscheduler/internal/logx"
)

// Notifier is the process-wide wake-up signal: every successful release closes
// the current channel (waking every parked select), then opens a fresh one.
// Waiters re-check their own predicate after every wake; spurious wakeups are
// fine. A channel rather than sync.Cond so waits compose with context
// cancellation in a select.
type Notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewNotifier returns a Notifier with no pending signal.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{})}
}

// Channel returns the channel to select on; it closes on the next Broadcast.
func (n *Notifier) Channel() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// Broadcast wakes every goroutine currently selecting on Channel().
func (n *Notifier) Broadcast() {
	n.mu.Lock()
	old := n.ch
	n.ch = make(chan struct{})
	n.mu.Unlock()
	close(old)
}

// DbVNManager is the cluster-wide replica -> DbVN map. It is created
// once at startup from the static replica list; entries for replicas that
// show up later (dynamic registration on release) are created on demand,
// defaulting to an all-zero DbVN.
type DbVNManager struct {
	mu     sync.RWMutex
	dbvn   map[string]*core.DbVN
	notify *Notifier
	log    *audit.Log
}

// NewDbVNManager seeds the manager with one all-zero DbVN per replica address.
func NewDbVNManager(replicaAddrs []string, log *audit.Log) *DbVNManager {
	m := &DbVNManager{
		dbvn:   make(map[string]*core.DbVN, len(replicaAddrs)),
		notify: NewNotifier(),
		log:    log,
	}
	for _, addr := range replicaAddrs {
		m.dbvn[addr] = core.NewDbVN()
	}
	return m
}

// Replicas returns every currently registered replica address, sorted.
func (m *DbVNManager) Replicas() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.dbvn))
	for addr := range m.dbvn {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// readyReplicas scans every registered replica and returns the ones ready for
// ops under txvn, sorted by address for a stable, deterministic tie-break.
func (m *DbVNManager) readyReplicas(ops core.TableOps, txvn core.TxVN) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ready []string
	for addr, dbvn := range m.dbvn {
		if ok, hasGrant := dbvn.Ready(ops, txvn); ok {
			core.Assert(hasGrant, "readiness", "a ready verdict requires a grant for every table in the query")
			ready = append(ready, addr)
		}
	}
	sort.Strings(ready)
	return ready
}

// replicaReady reports whether addr specifically is ready for ops under txvn.
func (m *DbVNManager) replicaReady(addr string, ops core.TableOps, txvn core.TxVN) (ready, hasGrant bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dbvn, ok := m.dbvn[addr]
	if !ok {
		return false, true
	}
	return dbvn.Ready(ops, txvn)
}

// WaitAnyReady blocks until at least one replica is ready for a ReadOnly
// TableOps under txvn, then returns the lowest-addressed ready replica. It
// rescans on every notification and returns ctx.Err() if ctx is canceled
// first, which is what gives a dropped client session's pending readiness
// wait clean cancellation.
func (m *DbVNManager) WaitAnyReady(ctx context.Context, ops core.TableOps, txvn core.TxVN) (string, error) {
	core.Assert(ops.AccessPattern() == core.ReadOnly, "readiness", "WaitAnyReady is only valid for a ReadOnly TableOps")
	for {
		if ready := m.readyReplicas(ops, txvn); len(ready) > 0 {
			return ready[0], nil
		}
		ch := m.notify.Channel()
		select {
		case <-ch:
			// spurious wakeups are permitted; the loop re-checks the predicate.
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// WaitReplicaReady blocks until addr specifically is ready for ops under txvn
// (the per-replica wait of a WriteOnly broadcast).
func (m *DbVNManager) WaitReplicaReady(ctx context.Context, addr string, ops core.TableOps, txvn core.TxVN) error {
	for {
		ready, hasGrant := m.replicaReady(addr, ops, txvn)
		core.Assert(hasGrant, "readiness", "a readiness wait requires a grant for every table in the query")
		if ready {
			return nil
		}
		ch := m.notify.Channel()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SingleReadFastPath serves a one-statement read with no enclosing TxVN: such
// a read is never blocked on a version. It picks the replica whose minimum
// covered-table version is greatest (best-effort freshness), tied by lowest
// address, and advances no versions.
func (m *DbVNManager) SingleReadFastPath(ops core.TableOps) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.dbvn) == 0 {
		return "", false
	}

	type candidate struct {
		addr string
		min  uint64
	}
	var best *candidate
	addrs := make([]string, 0, len(m.dbvn))
	for addr := range m.dbvn {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		dbvn := m.dbvn[addr]
		var min uint64
		first := true
		for _, to := range ops.Tables() {
			v := dbvn.Get(to.Table)
			if first || v < min {
				min = v
				first = false
			}
		}
		if best == nil || min > best.min {
			best = &candidate{addr: addr, min: min}
		}
	}
	return best.addr, true
}

// Release advances DbVN[replica][t] past every grant in txvn after that
// replica acknowledged an EndTx, creating the replica's entry if it isn't yet
// registered (dynamic replica registration), then wakes every waiter.
func (m *DbVNManager) Release(replica string, txvn core.TxVN) {
	m.mu.Lock()
	dbvn, ok := m.dbvn[replica]
	if !ok {
		logx.Warnf("scheduler: DbVNManager has no DbVN for %s yet, registering it now", replica)
		dbvn = core.NewDbVN()
		m.dbvn[replica] = dbvn
	}
	dbvn.Release(txvn)
	m.mu.Unlock()

	if m.log != nil {
		m.log.RecordRelease(replica, txvn)
	}
	m.notify.Broadcast()
}

// EvictReplica removes a replica from the manager entirely, the operator
// escape hatch for a permanently unreachable replica whose pending releases
// would otherwise stall every later transaction on its tables. Returns false
// if the replica was not registered.
func (m *DbVNManager) EvictReplica(addr string) bool {
	m.mu.Lock()
	_, ok := m.dbvn[addr]
	delete(m.dbvn, addr)
	m.mu.Unlock()
	if ok {
		m.notify.Broadcast()
	}
	return ok
}

// Snapshot returns a read-only, point-in-time copy of every replica's DbVN.
func (m *DbVNManager) Snapshot() map[string][]core.DbTableVN {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]core.DbTableVN, len(m.dbvn))
	for addr, dbvn := range m.dbvn {
		out[addr] = dbvn.Snapshot()
	}
	return out
}
