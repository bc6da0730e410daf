package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/surrealdb/surrealport/contrib/portserver"
)

func main() {
	// Create config with defaults
	config := portserver.NewConfig()

	flag.StringVar(&config.ConfigFile, "config", "", "YAML schema and blueprint file")
	flag.StringVar(&config.Store.Kind, "store", config.Store.Kind, "Store kind: surrealdb, postgres or memory")
	flag.StringVar(&config.Store.DSN, "dsn", config.Store.DSN, "SurrealDB endpoint or Postgres connection string")
	flag.StringVar(&config.Store.Namespace, "ns", "", "SurrealDB namespace")
	flag.StringVar(&config.Store.Database, "db", "", "SurrealDB database")
	flag.StringVar(&config.Store.Username, "username", config.Store.Username, "SurrealDB username")
	flag.StringVar(&config.Store.Password, "password", config.Store.Password, "SurrealDB password")
	flag.StringVar(&config.Addr, "addr", config.Addr, "Listen address")
	flag.StringVar(&config.RedisURL, "redis", "", "Keep binding tables in Redis at this URL")
	flag.StringVar(&config.LogFile, "log-file", "", "Write JSON logs to this file")
	flag.StringVar(&config.LogFormat, "log-format", config.LogFormat, "Logging backend: zerolog or slog")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")

	flag.Parse()

	// Validate configuration
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := portserver.Do(ctx, config); err != nil {
		log.Fatal(err)
	}
}
