// Package audit is a forensic, append-only record of version assignments and
// releases. It is not authoritative: nothing reads it back on startup, and
// the Sequencer and DbVNManager both still cold-start at zero. Its only
// purpose is letting an operator reconstruct "what versions did we hand out"
// after the fact.
package audit

import (
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/wal"

	"verscheduler/internal/core"
	"verscheduler/internal/logx"
)

// Entry is one audit record: either a version assignment or a release.
type Entry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"` // "assign" | "release"
	Replica string    `json:"replica,omitempty"`
	TxVN    core.TxVN `json:"txvn"`
}

// Log wraps a tidwall/wal append log. A nil *Log is valid and simply disables
// auditing everywhere it's threaded through.
type Log struct {
	mu   sync.Mutex
	wal  *wal.Log
	next uint64
}

// Open opens (or creates) the audit log at dir. Pass "" to disable auditing
// entirely and get a usable no-op Log.
func Open(dir string) (*Log, error) {
	if dir == "" {
		return nil, nil
	}
	w, err := wal.Open(dir, nil)
	if err != nil {
		return nil, err
	}
	last, err := w.LastIndex()
	if err != nil {
		return nil, err
	}
	return &Log{wal: w, next: last + 1}, nil
}

func (l *Log) append(e Entry) {
	if l == nil {
		return
	}
	buf, err := json.Marshal(e)
	if err != nil {
		logx.Warnf("audit: failed to marshal entry: %v", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.wal.Write(l.next, buf); err != nil {
		logx.Warnf("audit: failed to append entry: %v", err)
		return
	}
	l.next++
}

// RecordAssign logs a Sequencer grant.
func (l *Log) RecordAssign(txvn core.TxVN) {
	l.append(Entry{At: time.Now(), Kind: "assign", TxVN: txvn})
}

// RecordRelease logs a per-replica release.
func (l *Log) RecordRelease(replica string, txvn core.TxVN) {
	l.append(Entry{At: time.Now(), Kind: "release", Replica: replica, TxVN: txvn})
}

// Close releases the underlying wal file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.wal.Close()
}
