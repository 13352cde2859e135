package wire

import (
	"bytes"
	"testing"

	"verscheduler/internal/core"
	"verscheduler/internal/msql"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := Request{Type: "RequestMsqlText", Text: "COMMIT;"}
	if err := WriteJSON(&buf, req); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got Request
	if err := ReadJSON(&buf, &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Type != req.Type || got.Text != req.Text {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, req)
	}
}

func TestMsqlRoundTrip(t *testing.T) {
	orig := msql.BeginTx{
		TxName:   "tx0",
		TableOps: core.NewTableOps([]core.TableOp{{Table: "t0", Op: core.R}, {Table: "t1", Op: core.W}}),
	}
	env, err := MsqlToWire(orig)
	if err != nil {
		t.Fatalf("MsqlToWire: %v", err)
	}
	back, err := MsqlFromWire(env)
	if err != nil {
		t.Fatalf("MsqlFromWire: %v", err)
	}
	got, ok := back.(msql.BeginTx)
	if !ok {
		t.Fatalf("expected BeginTx, got %T", back)
	}
	if got.TxName != orig.TxName || got.TableOps.Len() != orig.TableOps.Len() {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, orig)
	}
}

func TestTxVNRoundTrip(t *testing.T) {
	orig := core.TxVN{
		TxName: "tx0",
		TxTableVNs: []core.TxTableVN{
			{Table: "t0", Vn: 5, Op: core.W},
			{Table: "t1", Vn: 0, Op: core.R},
		},
	}
	back, err := TxVNFromWire(TxVNToWire(orig))
	if err != nil {
		t.Fatalf("TxVNFromWire: %v", err)
	}
	if len(back.TxTableVNs) != 2 || back.TxTableVNs[0].Vn != 5 {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}
