// Command scheduler runs the Scheduler service: it accepts client
// connections, requests TxVNs from the Sequencer, and routes statements to
// replicas once their DbVN catches up.
//
// Exit codes: 0 on normal shutdown, 1 on a bind failure, 2 on a
// configuration error.
package main

import (
	"flag"
	"log"
	"net"
	"net/http"
	"os"

	"golang.org/x/net/netutil"

	"verscheduler/internal/admin"
	"verscheduler/internal/audit"
	"verscheduler/internal/config"
	"verscheduler/internal/logx"
	"verscheduler/internal/scheduler"
)

var (
	configPath string
	debug      bool
)

func init() {
	flag.StringVar(&configPath, "config", "scheduler.properties", "path to the deployment config file")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	flag.Parse()
	logx.Debug = debug

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("scheduler: %v", err)
		os.Exit(2)
	}
	if cfg.SequencerAddr == "" {
		log.Printf("scheduler: sequencer_addr is required")
		os.Exit(2)
	}

	auditLog, err := audit.Open(cfg.AuditLogDir)
	if err != nil {
		log.Printf("scheduler: opening audit log: %v", err)
		os.Exit(2)
	}
	if auditLog != nil {
		defer auditLog.Close()
	}

	dbvn := scheduler.NewDbVNManager(cfg.Replicas, auditLog)
	pools := scheduler.NewReplicaPools(cfg.MaxConns)
	dispatcher := scheduler.NewDispatcher(dbvn, pools)
	seqClient := scheduler.NewSequencerClient(cfg.SequencerAddr, cfg.MaxConns)
	defer seqClient.Close()

	handler := scheduler.NewHandler(dispatcher, seqClient)

	if cfg.AdminAddr != "" {
		host, _, err := net.SplitHostPort(cfg.AdminAddr)
		if ip := net.ParseIP(host); err != nil || (host != "localhost" && (ip == nil || !ip.IsLoopback())) {
			log.Printf("scheduler: admin_addr %s is not a loopback address", cfg.AdminAddr)
			os.Exit(2)
		}
		adminSrv := admin.NewServer(dbvn)
		go func() {
			logx.Infof("scheduler: admin surface listening on %s", cfg.AdminAddr)
			if err := http.ListenAndServe(cfg.AdminAddr, adminSrv.Handler()); err != nil {
				logx.Warnf("scheduler: admin surface stopped: %v", err)
			}
		}()
	}

	l, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Printf("scheduler: listen %s: %v", cfg.ListenAddr, err)
		os.Exit(1)
	}
	if cfg.MaxConns > 0 {
		l = netutil.LimitListener(l, cfg.MaxConns)
	}

	logx.Infof("scheduler: listening on %s, sequencer at %s, %d replica(s)", cfg.ListenAddr, cfg.SequencerAddr, len(cfg.Replicas))
	if err := handler.Serve(l); err != nil {
		log.Printf("scheduler: %v", err)
		os.Exit(1)
	}
}
