package replicastub

import (
	"context"
	"io"
	"net"

	"verscheduler/internal/logx"
	"verscheduler/internal/wire"
)

// Server answers the scheduler's Exec/EndTx traffic against one Executor.
type Server struct {
	exec Executor
}

// NewServer wraps an Executor for network service.
func NewServer(exec Executor) *Server {
	return &Server{exec: exec}
}

// Serve accepts connections from l until it returns an error.
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
	ctx := context.Background()

	for {
		var req wire.ReplicaMessage
		if err := wire.ReadJSON(conn, &req); err != nil {
			if err != io.EOF {
				logx.Debugf("replicastub: [%s] read error: %v", peer, err)
			}
			return
		}

		var reply wire.ReplicaMessage
		switch req.Type {
		case "Exec":
			rows, err := s.exec.Exec(ctx, req.QueryText)
			if err != nil {
				logx.Warnf("replicastub: [%s] exec failed: %v", peer, err)
				reply = wire.ErrReply(err)
			} else {
				reply = wire.OkReply(rows)
			}
		case "EndTx":
			commit := req.Commit != nil && *req.Commit
			if err := s.exec.EndTx(ctx, commit); err != nil {
				reply = wire.ErrReply(err)
			} else {
				reply = wire.OkReply(nil)
			}
		default:
			logx.Warnf("replicastub: [%s] unsupported message type %q", peer, req.Type)
			reply = wire.ErrReply(errUnsupported(req.Type))
		}

		if err := wire.WriteJSON(conn, reply); err != nil {
			logx.Debugf("replicastub: [%s] write error: %v", peer, err)
			return
		}
	}
}

type errUnsupported string

func (e errUnsupported) Error() string { return "unsupported message type: " + string(e) }
