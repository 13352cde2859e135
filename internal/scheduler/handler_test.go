package scheduler

import (
	"context"
	"net"
	"testing"
	"time"

	"verscheduler/internal/core"
	"verscheduler/internal/msql"
	"verscheduler/internal/sequencer"
	"verscheduler/internal/wire"
)

// fakeSequencer spins up a real sequencer.Server on a loopback port so
// Handler's SequencerClient has something to dial.
func fakeSequencer(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := sequencer.NewServer(sequencer.New(nil))
	go srv.Serve(l)
	t.Cleanup(func() { l.Close() })
	return l.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandlerFullTransactionLifecycle(t *testing.T) {
	replicaAddr := fakeReplica(t)
	seqAddr := fakeSequencer(t)

	dbvn := NewDbVNManager([]string{replicaAddr}, nil)
	d := NewDispatcher(dbvn, NewReplicaPools(4))
	sc := NewSequencerClient(seqAddr, 4)
	h := NewHandler(d, sc)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go h.Serve(l)

	conn := dial(t, l.Addr().String())
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	send := func(req wire.Request) wire.Response {
		if err := wire.WriteJSON(conn, req); err != nil {
			t.Fatalf("write: %v", err)
		}
		var resp wire.Response
		if err := wire.ReadJSON(conn, &resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		return resp
	}

	begin := send(wire.Request{Type: "RequestMsqlText", Text: "BEGIN tx1 WITH MARK 'WRITE t0'"})
	if begin.Type != "Reply" || begin.Response.BeginTx == nil || !begin.Response.BeginTx.Ok {
		t.Fatalf("unexpected BeginTx response: %+v", begin)
	}

	query := send(wire.Request{Type: "RequestMsqlText", Text: "UPDATE t0 SET x=1"})
	if query.Type != "Reply" || query.Response.Query == nil || !query.Response.Query.Ok {
		t.Fatalf("unexpected Query response: %+v", query)
	}

	end := send(wire.Request{Type: "RequestMsqlText", Text: "COMMIT tx1"})
	if end.Type != "Reply" || end.Response.EndTx == nil || !end.Response.EndTx.Ok {
		t.Fatalf("unexpected EndTx response: %+v", end)
	}

	// A second EndTx with no open transaction is a protocol misuse, not a
	// dropped connection.
	misuse := send(wire.Request{Type: "RequestMsqlText", Text: "COMMIT tx1"})
	if misuse.Response.EndTx == nil || misuse.Response.EndTx.Ok {
		t.Fatalf("expected protocol misuse on redundant EndTx, got %+v", misuse)
	}
}

// A second BeginTx without an EndTx is refused, and the first transaction
// stays open and usable.
func TestHandlerDoubleBegin(t *testing.T) {
	replicaAddr := fakeReplica(t)
	seqAddr := fakeSequencer(t)

	dbvn := NewDbVNManager([]string{replicaAddr}, nil)
	d := NewDispatcher(dbvn, NewReplicaPools(4))
	h := NewHandler(d, NewSequencerClient(seqAddr, 4))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go h.Serve(l)

	conn := dial(t, l.Addr().String())
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	send := func(text string) wire.Response {
		if err := wire.WriteJSON(conn, wire.Request{Type: "RequestMsqlText", Text: text}); err != nil {
			t.Fatalf("write: %v", err)
		}
		var resp wire.Response
		if err := wire.ReadJSON(conn, &resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		return resp
	}

	if resp := send("BEGIN TRAN WITH MARK 'WRITE t0'"); !resp.Response.BeginTx.Ok {
		t.Fatalf("first BeginTx failed: %+v", resp)
	}
	if resp := send("BEGIN TRAN WITH MARK 'WRITE t1'"); resp.Response.BeginTx.Ok {
		t.Fatal("second BeginTx must be refused while a transaction is open")
	}
	if resp := send("UPDATE t0 SET x=1"); !resp.Response.Query.Ok {
		t.Fatalf("first transaction must remain usable, got %+v", resp)
	}
	if resp := send("COMMIT"); !resp.Response.EndTx.Ok {
		t.Fatalf("commit of first transaction failed: %+v", resp)
	}
}

// A client that disconnects while its query is parked in a readiness wait has
// the wait canceled and its session torn down, rather than leaving the
// session goroutine parked forever.
func TestHandlerDisconnectCancelsParkedWait(t *testing.T) {
	seqAddr := fakeSequencer(t)

	dbvn := NewDbVNManager([]string{"A"}, nil)
	d := NewDispatcher(dbvn, NewReplicaPools(1))
	sc := NewSequencerClient(seqAddr, 1)
	h := NewHandler(d, sc)

	// Burn version 0 of t0 on a transaction that never ends, so the test
	// session's read grant can only be satisfied by a release that never comes.
	if _, err := sc.RequestTxVN(context.Background(), msql.BeginTx{
		TableOps: ops(core.TableOp{Table: "t0", Op: core.R}),
	}); err != nil {
		t.Fatalf("RequestTxVN: %v", err)
	}

	client, server := net.Pipe()
	defer client.Close()
	sessionDone := make(chan struct{})
	go func() {
		h.handleConn(server)
		close(sessionDone)
	}()

	client.SetDeadline(time.Now().Add(2 * time.Second))
	if err := wire.WriteJSON(client, wire.Request{Type: "RequestMsqlText", Text: "BEGIN TRAN WITH MARK 'READ t0'"}); err != nil {
		t.Fatalf("write BeginTx: %v", err)
	}
	var resp wire.Response
	if err := wire.ReadJSON(client, &resp); err != nil {
		t.Fatalf("read BeginTx reply: %v", err)
	}
	if !resp.Response.BeginTx.Ok {
		t.Fatalf("BeginTx failed: %+v", resp)
	}

	// The query parks: the grant is at version 1 and no replica ever gets
	// released past 0. No reply will arrive.
	if err := wire.WriteJSON(client, wire.Request{Type: "RequestMsqlText", Text: "SELECT * FROM t0"}); err != nil {
		t.Fatalf("write Query: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	client.Close()

	select {
	case <-sessionDone:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not tear down after the client disconnected mid-wait")
	}
}

func TestHandlerInvalidText(t *testing.T) {
	dbvn := NewDbVNManager(nil, nil)
	d := NewDispatcher(dbvn, NewReplicaPools(1))
	sc := NewSequencerClient("127.0.0.1:1", 1)
	h := NewHandler(d, sc)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go h.Serve(l)

	conn := dial(t, l.Addr().String())
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if err := wire.WriteJSON(conn, wire.Request{Type: "RequestMsqlText", Text: "not a statement"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp wire.Response
	if err := wire.ReadJSON(conn, &resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != "InvalidMsqlText" {
		t.Fatalf("expected InvalidMsqlText, got %+v", resp)
	}
}
