package scheduler

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"verscheduler/internal/core"
	"verscheduler/internal/msql"
	"verscheduler/internal/wire"
)

// fakeReplica is a minimal in-process stand-in for a replicastub: it accepts
// any number of connections and answers every ExecRequest/EndTxRequest with Ok.
func fakeReplica(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				for {
					var req wire.ReplicaMessage
					if err := wire.ReadJSON(c, &req); err != nil {
						return
					}
					if err := wire.WriteJSON(c, wire.OkReply(nil)); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	t.Cleanup(func() { l.Close() })
	return l.Addr().String()
}

func TestDispatcherSingleReadFastPath(t *testing.T) {
	addr := fakeReplica(t)
	dbvn := NewDbVNManager([]string{addr}, nil)
	pools := NewReplicaPools(4)
	d := NewDispatcher(dbvn, pools)

	q := msql.Query{QueryText: "SELECT * FROM t0", TableOps: ops(core.TableOp{Table: "t0", Op: core.R})}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatcherMixedQueryRejected(t *testing.T) {
	dbvn := NewDbVNManager(nil, nil)
	d := NewDispatcher(dbvn, NewReplicaPools(1))
	q := msql.Query{QueryText: "x", TableOps: ops(core.TableOp{Table: "t0", Op: core.R}, core.TableOp{Table: "t1", Op: core.W})}
	tv := txvn(core.TxTableVN{Table: "t0", Vn: 0, Op: core.R}, core.TxTableVN{Table: "t1", Vn: 0, Op: core.W})
	if _, err := d.ExecuteQuery(context.Background(), q, &tv); err == nil {
		t.Fatal("expected Mixed access pattern to be rejected")
	}
}

func TestDispatcherWriteWithoutTransactionRejected(t *testing.T) {
	dbvn := NewDbVNManager([]string{"A"}, nil)
	d := NewDispatcher(dbvn, NewReplicaPools(1))
	q := msql.Query{QueryText: "UPDATE t0 SET x=1", TableOps: ops(core.TableOp{Table: "t0", Op: core.W})}
	_, err := d.ExecuteQuery(context.Background(), q, nil)
	if !errors.Is(err, core.ErrProtocolMisuse) {
		t.Fatalf("expected ErrProtocolMisuse for a write outside a transaction, got %v", err)
	}
}

func TestDispatcherMissingGrantRejected(t *testing.T) {
	dbvn := NewDbVNManager(nil, nil)
	d := NewDispatcher(dbvn, NewReplicaPools(1))
	q := msql.Query{QueryText: "SELECT * FROM t9", TableOps: ops(core.TableOp{Table: "t9", Op: core.R})}
	tv := txvn(core.TxTableVN{Table: "t0", Vn: 0, Op: core.R})
	if _, err := d.ExecuteQuery(context.Background(), q, &tv); err == nil {
		t.Fatal("expected missing grant to be rejected")
	}
}

func TestDispatcherWriteBroadcastAndEndTx(t *testing.T) {
	a, b := fakeReplica(t), fakeReplica(t)
	dbvn := NewDbVNManager([]string{a, b}, nil)
	pools := NewReplicaPools(4)
	d := NewDispatcher(dbvn, pools)

	q := msql.Query{QueryText: "UPDATE t0 SET x=1", TableOps: ops(core.TableOp{Table: "t0", Op: core.W})}
	tv := txvn(core.TxTableVN{Table: "t0", Vn: 0, Op: core.W})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := d.ExecuteQuery(ctx, q, &tv); err != nil {
		t.Fatalf("unexpected error on write broadcast: %v", err)
	}

	if err := d.ExecuteEndTx(ctx, tv, true); err != nil {
		t.Fatalf("unexpected error on EndTx: %v", err)
	}

	snap := dbvn.Snapshot()
	for _, addr := range []string{a, b} {
		for _, e := range snap[addr] {
			if e.Table == "t0" && e.Vn != 1 {
				t.Fatalf("expected %s t0 -> 1 after release, got %d", addr, e.Vn)
			}
		}
	}
}
