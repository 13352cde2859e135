// Package sequencer is the cluster-wide version-number oracle: a single
// mapping table -> next_vn, handed out atomically per BeginTx request.
package sequencer

import (
	"sync"

	"verscheduler/internal/audit"
	"verscheduler/internal/core"
	"verscheduler/internal/msql"
)

// Sequencer assigns TxVNs. It never fails internally (no I/O happens inside
// AssignVN) and is not persistent: on restart, counters reset to zero, which
// is safe only because the whole cluster treats a restart as a cold start.
type Sequencer struct {
	mu   sync.Mutex
	next map[string]uint64
	log  *audit.Log // optional; nil disables auditing
}

// New returns a Sequencer with every table's counter at zero.
func New(log *audit.Log) *Sequencer {
	return &Sequencer{next: make(map[string]uint64), log: log}
}

// AssignVN grants a version number per table declared in b.TableOps, atomically
// with respect to every other concurrent AssignVN call: one
// exclusive critical section spans all tables of this request, so two
// transactions sharing a table always see a consistent relative order across
// every table they share, not just pairwise.
func (s *Sequencer) AssignVN(b msql.BeginTx) core.TxVN {
	tabs := b.TableOps.Tables()
	grants := make([]core.TxTableVN, len(tabs))

	s.mu.Lock()
	for i, to := range tabs {
		vn := s.next[to.Table]
		s.next[to.Table] = vn + 1
		grants[i] = core.TxTableVN{Table: to.Table, Vn: vn, Op: to.Op}
	}
	s.mu.Unlock()

	txvn := core.TxVN{TxName: b.TxName, TxTableVNs: grants}
	if s.log != nil {
		s.log.RecordAssign(txvn)
	}
	return txvn
}
