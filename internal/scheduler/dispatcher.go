package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"verscheduler/internal/core"
	"verscheduler/internal/logx"
	"verscheduler/internal/msql"
	"verscheduler/internal/wire"
)

// Dispatcher answers the two questions every statement raises: where to send
// it, and when. It owns no per-session state; ConnectionState lives one level
// up, in the per-connection Handler.
type Dispatcher struct {
	dbvn  *DbVNManager
	pools *ReplicaPools

	// EndTxRetryBackoff bounds the delay between retries of an EndTx
	// broadcast against an unreachable replica. A release must eventually
	// land on every replica or its versions stall, so retries continue
	// until the context is canceled or the replica is evicted.
	EndTxRetryBackoff time.Duration
}

// NewDispatcher ties a DbVNManager to a replica pool registry.
func NewDispatcher(dbvn *DbVNManager, pools *ReplicaPools) *Dispatcher {
	return &Dispatcher{dbvn: dbvn, pools: pools, EndTxRetryBackoff: 500 * time.Millisecond}
}

// checkGrants returns core.ErrMissingGrant if any table in ops lacks a grant
// in txvn.
func checkGrants(ops core.TableOps, txvn core.TxVN) error {
	for _, to := range ops.Tables() {
		if _, ok := txvn.Grant(to.Table); !ok {
			return fmt.Errorf("%w: table %q has no version grant in this transaction", core.ErrMissingGrant, to.Table)
		}
	}
	return nil
}

// ExecuteQuery runs one Query: reads go to one ready replica, writes broadcast
// to all. txvn is nil for the single-read fast path, a one-statement read with
// no enclosing BeginTx.
func (d *Dispatcher) ExecuteQuery(ctx context.Context, q msql.Query, txvn *core.TxVN) (wire.RawRows, error) {
	pattern := q.TableOps.AccessPattern()
	if pattern == core.Mixed {
		return nil, fmt.Errorf("%w: a single statement may not mix reads and writes", core.ErrMalformedQuery)
	}

	if txvn == nil {
		if pattern != core.ReadOnly {
			return nil, fmt.Errorf("%w: a write statement requires an open transaction", core.ErrProtocolMisuse)
		}
		return d.executeSingleRead(ctx, q)
	}

	if err := checkGrants(q.TableOps, *txvn); err != nil {
		return nil, err
	}

	if pattern == core.ReadOnly {
		return d.executeRead(ctx, q, *txvn)
	}
	return d.executeWrite(ctx, q, *txvn)
}

func (d *Dispatcher) executeSingleRead(ctx context.Context, q msql.Query) (wire.RawRows, error) {
	addr, ok := d.dbvn.SingleReadFastPath(q.TableOps)
	if !ok {
		return nil, fmt.Errorf("%w: no replica is registered", core.ErrReplicaUnavailable)
	}
	reply, err := d.pools.Get(addr).Send(ctx, wire.ExecRequest(nil, q.QueryText))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrReplicaUnavailable, err)
	}
	if !reply.Ok {
		return nil, fmt.Errorf("%w: %s", core.ErrReplicaUnavailable, reply.Err)
	}
	return reply.Rows, nil
}

func (d *Dispatcher) executeRead(ctx context.Context, q msql.Query, txvn core.TxVN) (wire.RawRows, error) {
	addr, err := d.dbvn.WaitAnyReady(ctx, q.TableOps, txvn)
	if err != nil {
		return nil, err
	}
	wtv := wire.TxVNToWire(txvn)
	reply, err := d.pools.Get(addr).Send(ctx, wire.ExecRequest(&wtv, q.QueryText))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrReplicaUnavailable, err)
	}
	if !reply.Ok {
		return nil, fmt.Errorf("%w: %s", core.ErrReplicaUnavailable, reply.Err)
	}
	return reply.Rows, nil
}

// executeWrite broadcasts a WriteOnly statement to every registered replica
// concurrently; each replica is individually gated on its own readiness for
// the declared grants before the statement is forwarded to it.
func (d *Dispatcher) executeWrite(ctx context.Context, q msql.Query, txvn core.TxVN) (wire.RawRows, error) {
	replicas := d.dbvn.Replicas()
	if len(replicas) == 0 {
		return nil, fmt.Errorf("%w: no replica is registered", core.ErrReplicaUnavailable)
	}
	wtv := wire.TxVNToWire(txvn)

	g, gctx := errgroup.WithContext(ctx)
	rows := make([]wire.RawRows, len(replicas))
	for i, addr := range replicas {
		i, addr := i, addr
		g.Go(func() error {
			if err := d.dbvn.WaitReplicaReady(gctx, addr, q.TableOps, txvn); err != nil {
				return err
			}
			reply, err := d.pools.Get(addr).Send(gctx, wire.ExecRequest(&wtv, q.QueryText))
			if err != nil {
				return fmt.Errorf("%w: %v", core.ErrReplicaUnavailable, err)
			}
			if !reply.Ok {
				return fmt.Errorf("%w: %s", core.ErrReplicaUnavailable, reply.Err)
			}
			rows[i] = reply.Rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	return nil, nil
}

// ExecuteEndTx broadcasts EndTx to every replica. On each ack the scheduler
// advances that replica's DbVN past every grant in txvn; commit and abort are
// released identically. Every replica must eventually acknowledge; an
// unreachable one is retried until ctx is canceled or it is evicted from the
// manager by an operator.
func (d *Dispatcher) ExecuteEndTx(ctx context.Context, txvn core.TxVN, commit bool) error {
	replicas := d.dbvn.Replicas()
	wtv := wire.TxVNToWire(txvn)

	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range replicas {
		addr := addr
		g.Go(func() error {
			return d.endTxOneReplica(gctx, addr, wtv, txvn, commit)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) endTxOneReplica(ctx context.Context, addr string, wtv wire.TxVNWire, txvn core.TxVN, commit bool) error {
	backoff := d.EndTxRetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	for {
		reply, err := d.pools.Get(addr).Send(ctx, wire.EndTxRequest(wtv, commit))
		if err == nil && reply.Ok {
			d.dbvn.Release(addr, txvn)
			return nil
		}
		if err != nil {
			logx.Warnf("scheduler: EndTx to %s failed, retrying: %v", addr, err)
		} else {
			logx.Warnf("scheduler: EndTx to %s rejected, retrying: %s", addr, reply.Err)
		}

		// An operator may have evicted this replica; stop retrying against it.
		if !contains(d.dbvn.Replicas(), addr) {
			return nil
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", core.ErrReplicaUnavailable, ctx.Err())
		}
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
