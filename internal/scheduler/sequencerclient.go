package scheduler

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"verscheduler/internal/core"
	"verscheduler/internal/msql"
	"verscheduler/internal/wire"
)

// SequencerClient is a pooled connection to the Sequencer: one request/reply
// round trip per BeginTx, multiplexed across a bounded number of TCP
// connections the same way ReplicaPool multiplexes replica requests.
type SequencerClient struct {
	addr string
	sem  chan struct{}

	mu   sync.Mutex
	free []net.Conn
}

// NewSequencerClient returns a client allowing up to maxConns concurrent
// requests in flight to the sequencer at addr.
func NewSequencerClient(addr string, maxConns int) *SequencerClient {
	if maxConns <= 0 {
		maxConns = 1
	}
	return &SequencerClient{addr: addr, sem: make(chan struct{}, maxConns)}
}

func (c *SequencerClient) acquire(ctx context.Context) (net.Conn, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.mu.Lock()
	if n := len(c.free); n > 0 {
		conn := c.free[n-1]
		c.free = c.free[:n-1]
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		<-c.sem
		return nil, err
	}
	return conn, nil
}

func (c *SequencerClient) release(conn net.Conn, reuse bool) {
	if reuse {
		c.mu.Lock()
		c.free = append(c.free, conn)
		c.mu.Unlock()
	} else {
		conn.Close()
	}
	<-c.sem
}

// RequestTxVN asks the Sequencer to assign versions for begin, surfacing any
// transport failure as ErrSequencerUnavailable.
func (c *SequencerClient) RequestTxVN(ctx context.Context, begin msql.BeginTx) (core.TxVN, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return core.TxVN{}, fmt.Errorf("%w: %v", core.ErrSequencerUnavailable, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	} else {
		conn.SetDeadline(time.Time{})
	}

	wireBegin := wire.BeginTxToWire(begin)
	if err := wire.WriteJSON(conn, wire.RequestTxVN(wireBegin)); err != nil {
		c.release(conn, false)
		return core.TxVN{}, fmt.Errorf("%w: %v", core.ErrSequencerUnavailable, err)
	}

	var reply wire.SeqMessage
	if err := wire.ReadJSON(conn, &reply); err != nil {
		c.release(conn, false)
		return core.TxVN{}, fmt.Errorf("%w: %v", core.ErrSequencerUnavailable, err)
	}
	c.release(conn, true)

	if reply.Type != "ReplyTxVN" || reply.TxVN == nil {
		return core.TxVN{}, fmt.Errorf("%w: invalid response from sequencer", core.ErrSequencerUnavailable)
	}
	return wire.TxVNFromWire(*reply.TxVN)
}

// Close drops every idle pooled connection.
func (c *SequencerClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.free {
		conn.Close()
	}
	c.free = nil
}
