// Package benchmark is a synthetic-workload generator that drives BeginTx/
// Query/EndTx traffic against a running scheduler: one goroutine per
// simulated client, a Zipfian key generator per client, and a running
// commit/abort tally.
package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/pingcap/go-ycsb/pkg/generator"

	"verscheduler/internal/core"
	"verscheduler/internal/msql"
	"verscheduler/internal/wire"
)

// Workload parameterizes one benchmark run. All knobs are explicit fields
// rather than package-level globals so two runs can coexist in one process.
type Workload struct {
	SchedulerAddr  string
	Tables         []string
	KeysPerTable   int64
	Skewness       float64
	TxLength       int
	ReadPercentage float64
	Clients        int
}

// Stats accumulates outcomes across every client goroutine.
type Stats struct {
	Committed int64
	Aborted   int64
	Errored   int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("committed=%d aborted=%d errored=%d", atomic.LoadInt64(&s.Committed), atomic.LoadInt64(&s.Aborted), atomic.LoadInt64(&s.Errored))
}

// Run starts w.Clients client goroutines and blocks until ctx is canceled,
// returning the accumulated Stats.
func Run(ctx context.Context, w Workload) *Stats {
	stats := &Stats{}
	done := make(chan struct{})
	for i := 0; i < w.Clients; i++ {
		go runClient(ctx, w, i, stats, done)
	}
	for i := 0; i < w.Clients; i++ {
		<-done
	}
	return stats
}

func runClient(ctx context.Context, w Workload, id int, stats *Stats, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	conn, err := net.Dial("tcp", w.SchedulerAddr)
	if err != nil {
		atomic.AddInt64(&stats.Errored, 1)
		return
	}
	defer conn.Close()

	r := rand.New(rand.NewSource(int64(id)*11 + 31))
	zip := generator.NewZipfianWithRange(0, w.KeysPerTable-1, w.Skewness)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		runOneTransaction(conn, w, r, zip, stats)
	}
}

func runOneTransaction(conn net.Conn, w Workload, r *rand.Rand, zip *generator.Zipfian, stats *Stats) {
	tableOps := pickTables(w, r)
	begin := msql.BeginTx{TableOps: core.NewTableOps(tableOps)}
	if err := send(conn, begin); err != nil {
		atomic.AddInt64(&stats.Errored, 1)
		return
	}

	for i := 0; i < w.TxLength; i++ {
		t := tableOps[i%len(tableOps)]
		key := zip.Next(r)
		var q msql.Query
		if t.Op == core.R {
			q = msql.Query{
				QueryText: fmt.Sprintf("SELECT * FROM %s WHERE key = %d", t.Table, key),
				TableOps:  core.NewTableOps([]core.TableOp{{Table: t.Table, Op: core.R}}),
			}
		} else {
			q = msql.Query{
				QueryText: fmt.Sprintf("UPDATE %s SET val = '%s' WHERE key = %d", t.Table, randSeq(r, 8), key),
				TableOps:  core.NewTableOps([]core.TableOp{{Table: t.Table, Op: core.W}}),
			}
		}
		if err := send(conn, q); err != nil {
			atomic.AddInt64(&stats.Errored, 1)
			return
		}
	}

	commit := r.Float64() < 0.95
	if err := send(conn, msql.EndTx{Commit: commit}); err != nil {
		atomic.AddInt64(&stats.Errored, 1)
		return
	}
	if commit {
		atomic.AddInt64(&stats.Committed, 1)
	} else {
		atomic.AddInt64(&stats.Aborted, 1)
	}
}

// pickTables decides, for one transaction, which of w.Tables it touches and
// whether each is read or written, per the ReadPercentage knob.
func pickTables(w Workload, r *rand.Rand) []core.TableOp {
	if len(w.Tables) == 0 {
		return []core.TableOp{{Table: "YCSB_MAIN", Op: core.R}}
	}
	out := make([]core.TableOp, len(w.Tables))
	for i, t := range w.Tables {
		op := core.R
		if r.Float64() >= w.ReadPercentage {
			op = core.W
		}
		out[i] = core.TableOp{Table: t, Op: op}
	}
	return out
}

func send(conn net.Conn, m msql.Msql) error {
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	envelope, err := wire.MsqlToWire(m)
	if err != nil {
		return err
	}
	if err := wire.WriteJSON(conn, wire.Request{Type: "RequestMsql", Msql: &envelope}); err != nil {
		return err
	}
	var resp wire.Response
	if err := wire.ReadJSON(conn, &resp); err != nil {
		return err
	}
	if resp.Type != "Reply" {
		return fmt.Errorf("benchmark: scheduler rejected request: %s", resp.Reason)
	}
	return nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func randSeq(r *rand.Rand, n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return string(b)
}
