package scheduler

import (
	"context"
	"net"
	"sync"
	"time"

	"verscheduler/internal/wire"
)

// ReplicaPool is a connection-pooled request/reply channel to one replica: a
// bounded number of live TCP connections, reused across requests, dialed
// lazily and on demand. The semaphore bounds in-flight requests, not just
// open connections.
type ReplicaPool struct {
	addr string
	sem  chan struct{}

	mu   sync.Mutex
	free []net.Conn
}

// NewReplicaPool returns a pool for addr allowing up to maxConns concurrent
// in-flight requests.
func NewReplicaPool(addr string, maxConns int) *ReplicaPool {
	if maxConns <= 0 {
		maxConns = 1
	}
	return &ReplicaPool{addr: addr, sem: make(chan struct{}, maxConns)}
}

func (p *ReplicaPool) acquire(ctx context.Context) (net.Conn, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	if n := len(p.free); n > 0 {
		c := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		<-p.sem
		return nil, err
	}
	return conn, nil
}

func (p *ReplicaPool) release(conn net.Conn, reuse bool) {
	if reuse {
		p.mu.Lock()
		p.free = append(p.free, conn)
		p.mu.Unlock()
	} else {
		conn.Close()
	}
	<-p.sem
}

// Send performs one request/reply round trip against this replica, honoring
// ctx for both connection acquisition and the I/O deadline.
func (p *ReplicaPool) Send(ctx context.Context, req wire.ReplicaMessage) (wire.ReplicaMessage, error) {
	conn, err := p.acquire(ctx)
	if err != nil {
		return wire.ReplicaMessage{}, err
	}

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	} else {
		conn.SetDeadline(time.Time{})
	}

	if err := wire.WriteJSON(conn, req); err != nil {
		p.release(conn, false)
		return wire.ReplicaMessage{}, err
	}
	var reply wire.ReplicaMessage
	if err := wire.ReadJSON(conn, &reply); err != nil {
		p.release(conn, false)
		return wire.ReplicaMessage{}, err
	}
	p.release(conn, true)
	return reply, nil
}

// Close drops every idle pooled connection. In-flight requests are left to
// finish on their own.
func (p *ReplicaPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.free {
		c.Close()
	}
	p.free = nil
}

// ReplicaPools is a registry of one ReplicaPool per replica address, created
// lazily so that a replica registered dynamically via DbVNManager.Release
// still has somewhere to dial.
type ReplicaPools struct {
	maxConns int

	mu    sync.Mutex
	pools map[string]*ReplicaPool
}

// NewReplicaPools returns an empty registry; each pool allows up to maxConns
// concurrent connections.
func NewReplicaPools(maxConns int) *ReplicaPools {
	return &ReplicaPools{maxConns: maxConns, pools: make(map[string]*ReplicaPool)}
}

// Get returns (creating if necessary) the pool for addr.
func (r *ReplicaPools) Get(addr string) *ReplicaPool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[addr]
	if !ok {
		p = NewReplicaPool(addr, r.maxConns)
		r.pools[addr] = p
	}
	return p
}

// Evict closes and forgets the pool for addr, if any.
func (r *ReplicaPools) Evict(addr string) {
	r.mu.Lock()
	p, ok := r.pools[addr]
	delete(r.pools, addr)
	r.mu.Unlock()
	if ok {
		p.Close()
	}
}
