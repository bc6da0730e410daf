package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/surrealdb/surrealport/contrib/portrestore"
)

func main() {
	// Create config with defaults
	config := portrestore.NewConfig()

	flag.StringVar(&config.ConfigFile, "config", "", "YAML schema and blueprint file")
	flag.StringVar(&config.Store.Kind, "store", config.Store.Kind, "Store kind: surrealdb, postgres or memory")
	flag.StringVar(&config.Store.DSN, "dsn", config.Store.DSN, "SurrealDB endpoint or Postgres connection string")
	flag.StringVar(&config.Store.Namespace, "ns", "", "SurrealDB namespace")
	flag.StringVar(&config.Store.Database, "db", "", "SurrealDB database")
	flag.StringVar(&config.Store.Username, "username", config.Store.Username, "SurrealDB username")
	flag.StringVar(&config.Store.Password, "password", config.Store.Password, "SurrealDB password")
	flag.StringVar(&config.Input, "input", "", "Dump file to restore")
	flag.StringVar(&config.RedisURL, "redis", "", "Keep the binding table in Redis at this URL")
	flag.StringVar(&config.BindingsOutput, "bindings", "", "Write the surrogate to real id map to this JSON file")
	flag.BoolVar(&config.SkipVerify, "skip-verify", false, "Skip the checksum comparison")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")

	flag.Parse()

	// Validate configuration
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// Execute the restore
	ctx := context.Background()
	if err := portrestore.Do(ctx, config); err != nil {
		log.Fatal(err)
	}
}
