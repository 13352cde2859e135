package wire

import (
	"fmt"

	"verscheduler/internal/core"
	"verscheduler/internal/msql"
)

// RawRows is an opaque, pass-through row payload: the representation of a SQL
// result set is a replica-side concern, so the scheduler never inspects it,
// only forwards it.
type RawRows []byte

func (r RawRows) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawRows) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}

// TableOpWire is the wire form of a core.TableOp.
type TableOpWire struct {
	Table string `json:"table"`
	Op    string `json:"op"`
}

func tableOpsToWire(ops core.TableOps) []TableOpWire {
	tabs := ops.Tables()
	out := make([]TableOpWire, len(tabs))
	for i, t := range tabs {
		out[i] = TableOpWire{Table: t.Table, Op: t.Op.String()}
	}
	return out
}

func tableOpsFromWire(in []TableOpWire) (core.TableOps, error) {
	raw := make([]core.TableOp, len(in))
	for i, w := range in {
		op, err := parseOp(w.Op)
		if err != nil {
			return core.TableOps{}, err
		}
		raw[i] = core.TableOp{Table: w.Table, Op: op}
	}
	return core.NewTableOps(raw), nil
}

func parseOp(s string) (core.Operation, error) {
	switch s {
	case "R":
		return core.R, nil
	case "W":
		return core.W, nil
	default:
		return 0, fmt.Errorf("wire: invalid operation %q", s)
	}
}

// TxTableVNWire is the wire form of a core.TxTableVN.
type TxTableVNWire struct {
	Table string `json:"table"`
	Vn    uint64 `json:"vn"`
	Op    string `json:"op"`
}

// TxVNWire is the wire form of a core.TxVN.
type TxVNWire struct {
	TxName     string          `json:"tx_name,omitempty"`
	TxTableVNs []TxTableVNWire `json:"txtablevns"`
}

func TxVNToWire(t core.TxVN) TxVNWire {
	out := TxVNWire{TxName: t.TxName, TxTableVNs: make([]TxTableVNWire, len(t.TxTableVNs))}
	for i, g := range t.TxTableVNs {
		out.TxTableVNs[i] = TxTableVNWire{Table: g.Table, Vn: g.Vn, Op: g.Op.String()}
	}
	return out
}

func TxVNFromWire(w TxVNWire) (core.TxVN, error) {
	out := core.TxVN{TxName: w.TxName, TxTableVNs: make([]core.TxTableVN, len(w.TxTableVNs))}
	for i, g := range w.TxTableVNs {
		op, err := parseOp(g.Op)
		if err != nil {
			return core.TxVN{}, err
		}
		out.TxTableVNs[i] = core.TxTableVN{Table: g.Table, Vn: g.Vn, Op: op}
	}
	return out, nil
}

// MsqlBeginTxWire is the wire form of msql.BeginTx.
type MsqlBeginTxWire struct {
	TxName   string        `json:"tx_name,omitempty"`
	TableOps []TableOpWire `json:"tableops"`
}

func BeginTxToWire(b msql.BeginTx) MsqlBeginTxWire {
	return MsqlBeginTxWire{TxName: b.TxName, TableOps: tableOpsToWire(b.TableOps)}
}

func BeginTxFromWire(w MsqlBeginTxWire) (msql.BeginTx, error) {
	ops, err := tableOpsFromWire(w.TableOps)
	if err != nil {
		return msql.BeginTx{}, err
	}
	return msql.BeginTx{TxName: w.TxName, TableOps: ops}, nil
}

// MsqlQueryWire is the wire form of msql.Query.
type MsqlQueryWire struct {
	QueryText string        `json:"query_text"`
	TableOps  []TableOpWire `json:"tableops"`
}

func QueryToWire(q msql.Query) MsqlQueryWire {
	return MsqlQueryWire{QueryText: q.QueryText, TableOps: tableOpsToWire(q.TableOps)}
}

func QueryFromWire(w MsqlQueryWire) (msql.Query, error) {
	ops, err := tableOpsFromWire(w.TableOps)
	if err != nil {
		return msql.Query{}, err
	}
	return msql.Query{QueryText: w.QueryText, TableOps: ops}, nil
}

// MsqlEndTxWire is the wire form of msql.EndTx.
type MsqlEndTxWire struct {
	TxName string `json:"tx_name,omitempty"`
	Commit bool   `json:"commit"`
}

// MsqlEnvelope is the wire tagged union for msql.Msql.
type MsqlEnvelope struct {
	Kind    string           `json:"kind"`
	BeginTx *MsqlBeginTxWire `json:"begin_tx,omitempty"`
	Query   *MsqlQueryWire   `json:"query,omitempty"`
	EndTx   *MsqlEndTxWire   `json:"end_tx,omitempty"`
}

func MsqlToWire(m msql.Msql) (MsqlEnvelope, error) {
	switch v := m.(type) {
	case msql.BeginTx:
		w := BeginTxToWire(v)
		return MsqlEnvelope{Kind: "BeginTx", BeginTx: &w}, nil
	case msql.Query:
		w := QueryToWire(v)
		return MsqlEnvelope{Kind: "Query", Query: &w}, nil
	case msql.EndTx:
		return MsqlEnvelope{Kind: "EndTx", EndTx: &MsqlEndTxWire{TxName: v.TxName, Commit: v.Commit}}, nil
	default:
		return MsqlEnvelope{}, fmt.Errorf("wire: unknown Msql variant %T", m)
	}
}

func MsqlFromWire(e MsqlEnvelope) (msql.Msql, error) {
	switch e.Kind {
	case "BeginTx":
		if e.BeginTx == nil {
			return nil, fmt.Errorf("wire: BeginTx envelope missing payload")
		}
		return BeginTxFromWire(*e.BeginTx)
	case "Query":
		if e.Query == nil {
			return nil, fmt.Errorf("wire: Query envelope missing payload")
		}
		return QueryFromWire(*e.Query)
	case "EndTx":
		if e.EndTx == nil {
			return nil, fmt.Errorf("wire: EndTx envelope missing payload")
		}
		return msql.EndTx{TxName: e.EndTx.TxName, Commit: e.EndTx.Commit}, nil
	default:
		return nil, fmt.Errorf("wire: unknown Msql kind %q", e.Kind)
	}
}
