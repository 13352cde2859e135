package wire

// ReplicaMessage is the tagged union for scheduler<->replica traffic: a
// request envelope carries the governing TxVN (absent for the single-read
// fast path) alongside either a query to execute or an EndTx to apply; the
// reply surfaces rows (reads) or a bare acknowledgment (writes / EndTx).
type ReplicaMessage struct {
	Type string `json:"type"` // "Exec" | "EndTx" | "Reply"

	// Request fields.
	TxVN      *TxVNWire `json:"txvn,omitempty"`
	QueryText string    `json:"query_text,omitempty"`
	Commit    *bool     `json:"commit,omitempty"`

	// Reply fields.
	Ok   bool    `json:"ok"`
	Err  string  `json:"err,omitempty"`
	Rows RawRows `json:"rows,omitempty"`
}

func ExecRequest(txvn *TxVNWire, queryText string) ReplicaMessage {
	return ReplicaMessage{Type: "Exec", TxVN: txvn, QueryText: queryText}
}

func EndTxRequest(txvn TxVNWire, commit bool) ReplicaMessage {
	return ReplicaMessage{Type: "EndTx", TxVN: &txvn, Commit: &commit}
}

func OkReply(rows RawRows) ReplicaMessage {
	return ReplicaMessage{Type: "Reply", Ok: true, Rows: rows}
}

func ErrReply(err error) ReplicaMessage {
	return ReplicaMessage{Type: "Reply", Ok: false, Err: err.Error()}
}
