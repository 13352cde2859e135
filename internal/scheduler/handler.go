package scheduler

import (
	"context"
	"fmt"
	"io"
	"net"

	"verscheduler/internal/core"
	"verscheduler/internal/logx"
	"verscheduler/internal/msql"
	"verscheduler/internal/wire"
)

// Handler serves client connections end to end, walking each session
// through Idle -> AwaitingVN -> InTx -> Releasing -> Idle. Every connection
// gets its own ConnectionState; the Dispatcher and SequencerClient are shared
// by all of them.
type Handler struct {
	Dispatcher *Dispatcher
	Sequencer  *SequencerClient
}

// NewHandler wires a per-process Dispatcher and SequencerClient for serving
// connections.
func NewHandler(d *Dispatcher, sc *SequencerClient) *Handler {
	return &Handler{Dispatcher: d, Sequencer: sc}
}

// Serve accepts connections on l, one goroutine per connection, until l
// returns an error (typically because it was closed during shutdown).
func (h *Handler) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go h.handleConn(conn)
	}
}

// handleConn runs the session loop for one client: a fresh core.ConnectionState
// per connection (at most one open transaction at a time), torn down on the
// first I/O error or client disconnect.
//
// Requests are read by a background goroutine and handed over on a channel so
// the loop can keep watching the connection while a statement is in flight: a
// client that drops mid-statement surfaces as a read error on errCh, and
// canceling ctx unparks any readiness wait the dispatch is blocked in. An EndTx
// broadcast is the one dispatch that must survive this cancellation; it runs on
// its own context (see handleEndTx) and the loop drains it before returning.
func (h *Handler) handleConn(conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr()
	state := core.NewConnectionState()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reqCh := make(chan wire.Request)
	errCh := make(chan error, 1)
	go func() {
		for {
			var req wire.Request
			if err := wire.ReadJSON(conn, &req); err != nil {
				errCh <- err
				return
			}
			select {
			case reqCh <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var req wire.Request
		select {
		case req = <-reqCh:
		case err := <-errCh:
			if err != io.EOF {
				logx.Debugf("scheduler: [%s] read error: %v", peer, err)
			}
			return
		}

		respCh := make(chan wire.Response, 1)
		go func() {
			respCh <- h.dispatch(ctx, peer.String(), state, req)
		}()

		var resp wire.Response
		select {
		case resp = <-respCh:
		case err := <-errCh:
			// Client went away while the statement was in flight: cancel its
			// pending waits, then let the dispatch finish before tearing down
			// so an in-flight release still lands on every replica.
			if err != io.EOF {
				logx.Debugf("scheduler: [%s] read error mid-statement: %v", peer, err)
			}
			cancel()
			<-respCh
			return
		}

		if err := wire.WriteJSON(conn, resp); err != nil {
			logx.Debugf("scheduler: [%s] write error: %v", peer, err)
			return
		}
	}
}

// dispatch decodes one Request into an Msql, routes it by its dynamic type,
// and returns the matching Response. Parse/decode failures are reported back
// to the client rather than dropping the connection: a malformed statement
// ends the statement, not the session. A text that fails the grammar gets
// InvalidMsqlText with the reason; an undecodable or unknown-typed structured
// request gets InvalidRequest.
func (h *Handler) dispatch(ctx context.Context, peer string, state *core.ConnectionState, req wire.Request) wire.Response {
	var m msql.Msql
	switch req.Type {
	case "RequestMsql":
		if req.Msql == nil {
			logx.Debugf("scheduler: [%s] RequestMsql missing payload", peer)
			return wire.InvalidRequest()
		}
		var err error
		if m, err = wire.MsqlFromWire(*req.Msql); err != nil {
			logx.Debugf("scheduler: [%s] invalid RequestMsql: %v", peer, err)
			return wire.InvalidRequest()
		}
	case "RequestMsqlText":
		var err error
		if m, err = msql.ParseText(req.Text); err != nil {
			logx.Debugf("scheduler: [%s] invalid msql text: %v", peer, err)
			return wire.InvalidMsqlText(err.Error())
		}
	default:
		logx.Debugf("scheduler: [%s] unsupported request type %q", peer, req.Type)
		return wire.InvalidRequest()
	}

	switch v := m.(type) {
	case msql.BeginTx:
		return h.handleBeginTx(ctx, peer, state, v)
	case msql.Query:
		return h.handleQuery(ctx, peer, state, v)
	case msql.EndTx:
		return h.handleEndTx(ctx, peer, state, v)
	default:
		return wire.InvalidRequest()
	}
}

// handleBeginTx requests a TxVN from the Sequencer and stores it in the
// session's ConnectionState. ErrProtocolMisuse if a transaction is already
// open.
func (h *Handler) handleBeginTx(ctx context.Context, peer string, state *core.ConnectionState, b msql.BeginTx) wire.Response {
	// Refuse before consuming version numbers: a TxVN assigned here but never
	// stored would also never be released, stalling its tables forever.
	if state.Current() != nil {
		return wire.ReplyBeginTx(fmt.Errorf("%w: previous transaction not finished yet", core.ErrProtocolMisuse))
	}

	txvn, err := h.Sequencer.RequestTxVN(ctx, b)
	if err != nil {
		logx.Warnf("scheduler: [%s] BeginTx failed: %v", peer, err)
		return wire.ReplyBeginTx(err)
	}
	if err := state.Insert(txvn); err != nil {
		return wire.ReplyBeginTx(err)
	}
	logx.Debugf("scheduler: [%s] BeginTx -> %v", peer, txvn)
	return wire.ReplyBeginTx(nil)
}

// handleQuery runs a Query against whatever TxVN (if any) is currently open
// for this session. A nil TxVN selects the single-read fast path.
func (h *Handler) handleQuery(ctx context.Context, peer string, state *core.ConnectionState, q msql.Query) wire.Response {
	cur := state.Current()
	rows, err := h.Dispatcher.ExecuteQuery(ctx, q, cur)
	if err != nil {
		logx.Debugf("scheduler: [%s] Query failed: %v", peer, err)
	}
	return wire.ReplyQuery(rows, err)
}

// handleEndTx closes the session's open transaction, broadcasting release to
// every replica. ErrProtocolMisuse if no transaction is open.
//
// The broadcast deliberately runs on a fresh context, not the session's: once
// the TxVN has been taken, every replica must be released even if the client
// disconnects mid-broadcast, or the granted versions stall forever.
func (h *Handler) handleEndTx(ctx context.Context, peer string, state *core.ConnectionState, e msql.EndTx) wire.Response {
	txvn, err := state.Take()
	if err != nil {
		return wire.ReplyEndTx(err)
	}
	if err := h.Dispatcher.ExecuteEndTx(context.Background(), txvn, e.Commit); err != nil {
		logx.Warnf("scheduler: [%s] EndTx release failed: %v", peer, err)
		return wire.ReplyEndTx(err)
	}
	logx.Debugf("scheduler: [%s] EndTx commit=%v released %v", peer, e.Commit, txvn)
	return wire.ReplyEndTx(nil)
}
