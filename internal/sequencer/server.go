package sequencer

import (
	"io"
	"net"

	"verscheduler/internal/logx"
	"verscheduler/internal/wire"
)

// Server accepts TCP connections from scheduler(s) and answers RequestTxVN
// messages. One connection serves many requests; requests on the same
// connection are processed in order.
type Server struct {
	seq *Sequencer
}

// NewServer wraps seq for network service.
func NewServer(seq *Sequencer) *Server {
	return &Server{seq: seq}
}

// Serve accepts connections from l until it returns an error (typically
// because l was closed during shutdown).
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr()

	for {
		var msg wire.SeqMessage
		if err := wire.ReadJSON(conn, &msg); err != nil {
			if err != io.EOF {
				logx.Debugf("sequencer: [%s] read error: %v", peer, err)
			}
			return
		}

		var reply wire.SeqMessage
		switch msg.Type {
		case "RequestTxVN":
			if msg.Request == nil {
				reply = wire.InvalidSeqMessage()
				break
			}
			begin, err := wire.BeginTxFromWire(*msg.Request)
			if err != nil {
				logx.Debugf("sequencer: [%s] bad RequestTxVN: %v", peer, err)
				reply = wire.InvalidSeqMessage()
				break
			}
			logx.Debugf("sequencer: <- [%s] RequestTxVN %v", peer, begin)
			txvn := s.seq.AssignVN(begin)
			logx.Debugf("sequencer: -> [%s] ReplyTxVN %v", peer, txvn)
			reply = wire.ReplyTxVN(wire.TxVNToWire(txvn))
		default:
			logx.Warnf("sequencer: [%s] unsupported message type %q", peer, msg.Type)
			reply = wire.InvalidSeqMessage()
		}

		if err := wire.WriteJSON(conn, reply); err != nil {
			logx.Debugf("sequencer: [%s] write error: %v", peer, err)
			return
		}
	}
}
