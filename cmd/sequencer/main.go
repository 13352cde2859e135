// Command sequencer runs the Sequencer service: it assigns each BeginTx a
// globally consistent TxVN and nothing else.
//
// Exit codes: 0 on normal shutdown, 1 on a bind failure, 2 on a
// configuration error.
package main

import (
	"flag"
	"log"
	"net"
	"os"

	"golang.org/x/net/netutil"

	"verscheduler/internal/audit"
	"verscheduler/internal/config"
	"verscheduler/internal/logx"
	"verscheduler/internal/sequencer"
)

var (
	configPath string
	debug      bool
)

func init() {
	flag.StringVar(&configPath, "config", "sequencer.properties", "path to the deployment config file")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	flag.Parse()
	logx.Debug = debug

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("sequencer: %v", err)
		os.Exit(2)
	}

	auditLog, err := audit.Open(cfg.AuditLogDir)
	if err != nil {
		log.Printf("sequencer: opening audit log: %v", err)
		os.Exit(2)
	}
	if auditLog != nil {
		defer auditLog.Close()
	}

	seq := sequencer.New(auditLog)
	srv := sequencer.NewServer(seq)

	l, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Printf("sequencer: listen %s: %v", cfg.ListenAddr, err)
		os.Exit(1)
	}
	if cfg.MaxConns > 0 {
		l = netutil.LimitListener(l, cfg.MaxConns)
	}

	logx.Infof("sequencer: listening on %s", cfg.ListenAddr)
	if err := srv.Serve(l); err != nil {
		log.Printf("sequencer: %v", err)
		os.Exit(1)
	}
}
