package msql

import (
	"testing"

	"verscheduler/internal/core"
)

func TestParseBeginTx(t *testing.T) {
	m, err := ParseText("BEGIN TRANSACTION foo WITH MARK 'READ t1 t2 WRITE t3';")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	begin, ok := m.(BeginTx)
	if !ok {
		t.Fatalf("expected BeginTx, got %T", m)
	}
	if begin.TxName != "foo" {
		t.Fatalf("expected tx name foo, got %q", begin.TxName)
	}
	if begin.TableOps.AccessPattern() != core.Mixed {
		t.Fatalf("expected mixed access pattern, got %v", begin.TableOps.AccessPattern())
	}
	op, ok := begin.TableOps.Lookup("t3")
	if !ok || op != core.W {
		t.Fatalf("expected t3 -> W, got %v ok=%v", op, ok)
	}
}

func TestParseBeginTxNoName(t *testing.T) {
	m, err := ParseText("BEGIN TRAN WITH MARK 'WRITE t0'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	begin := m.(BeginTx)
	if begin.TxName != "" {
		t.Fatalf("expected no tx name, got %q", begin.TxName)
	}
}

func TestParseCommit(t *testing.T) {
	m, err := ParseText("COMMIT TRAN foo;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	end := m.(EndTx)
	if !end.Commit || end.TxName != "foo" {
		t.Fatalf("unexpected EndTx: %+v", end)
	}
}

func TestParseRollback(t *testing.T) {
	m, err := ParseText("ROLLBACK;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	end := m.(EndTx)
	if end.Commit {
		t.Fatalf("expected abort, got commit")
	}
}

func TestParseSelect(t *testing.T) {
	m, err := ParseText("SELECT * FROM t1, t2 WHERE t1.id = t2.id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := m.(Query)
	if q.TableOps.AccessPattern() != core.ReadOnly {
		t.Fatalf("expected read-only, got %v", q.TableOps.AccessPattern())
	}
	if q.TableOps.Len() != 2 {
		t.Fatalf("expected 2 tables, got %d", q.TableOps.Len())
	}
}

func TestParseUpdate(t *testing.T) {
	m, err := ParseText("UPDATE t0 SET x = 1 WHERE id = 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := m.(Query)
	op, ok := q.TableOps.Lookup("t0")
	if !ok || op != core.W {
		t.Fatalf("expected t0 -> W, got %v ok=%v", op, ok)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := ParseText("GARBAGE"); err == nil {
		t.Fatal("expected an error for unrecognized statement")
	}
	if _, err := ParseText("BEGIN WITH MARK 'NOTHING t0'"); err == nil {
		t.Fatal("expected an error for a mark not starting with READ/WRITE")
	}
}
