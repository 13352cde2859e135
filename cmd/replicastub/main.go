// Command replicastub runs one of the two reference replica-side executors
// against a backing store, for driving the scheduler/dispatcher in
// integration tests. It is not part of the production core.
//
// Exit codes: 0 on normal shutdown, 1 on a bind failure, 2 on a
// configuration error.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"

	"verscheduler/internal/logx"
	"verscheduler/internal/replicastub"
)

var (
	backend    string
	listenAddr string
	dsn        string
	dbName     string
	debug      bool
)

func init() {
	flag.StringVar(&backend, "backend", "postgres", "backing store: postgres or mongo")
	flag.StringVar(&listenAddr, "addr", "127.0.0.1:7000", "address to listen on for scheduler connections")
	flag.StringVar(&dsn, "dsn", "postgres://localhost:5432/verscheduler?sslmode=disable", "backing store connection string (postgres DSN or mongo URI)")
	flag.StringVar(&dbName, "db", "verscheduler", "database name (mongo only)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	flag.Parse()
	logx.Debug = debug
	ctx := context.Background()

	var exec replicastub.Executor
	var err error
	switch backend {
	case "postgres":
		exec, err = replicastub.NewPostgresExecutor(ctx, dsn)
	case "mongo":
		exec, err = replicastub.NewMongoExecutor(ctx, dsn, dbName)
	default:
		log.Printf("replicastub: unknown backend %q (want postgres or mongo)", backend)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("replicastub: %v", err)
		os.Exit(2)
	}
	defer exec.Close(ctx)

	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Printf("replicastub: listen %s: %v", listenAddr, err)
		os.Exit(1)
	}

	logx.Infof("replicastub: %s backend listening on %s", backend, listenAddr)
	if err := replicastub.NewServer(exec).Serve(l); err != nil {
		log.Printf("replicastub: %v", err)
		os.Exit(1)
	}
}
