package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/surrealdb/surrealport/contrib/portdump"
)

func main() {
	// Create config with defaults
	config := portdump.NewConfig()

	var ids string
	flag.StringVar(&config.ConfigFile, "config", "", "YAML schema and blueprint file")
	flag.StringVar(&config.Store.Kind, "store", config.Store.Kind, "Store kind: surrealdb, postgres or memory")
	flag.StringVar(&config.Store.DSN, "dsn", config.Store.DSN, "SurrealDB endpoint or Postgres connection string")
	flag.StringVar(&config.Store.Namespace, "ns", "", "SurrealDB namespace")
	flag.StringVar(&config.Store.Database, "db", "", "SurrealDB database")
	flag.StringVar(&config.Store.Username, "username", config.Store.Username, "SurrealDB username")
	flag.StringVar(&config.Store.Password, "password", config.Store.Password, "SurrealDB password")
	flag.StringVar(&config.Type, "type", "", "Type of the root records")
	flag.StringVar(&ids, "id", "", "Comma-separated real ids of the root records")
	flag.StringVar(&config.Output, "output", "", "Output file path (default <type>-<timestamp>.cbor)")
	flag.StringVar(&config.Dir, "dir", "", "Base directory for dumps (prefixes output path)")
	flag.BoolVar(&config.DependencyOrder, "dependency-order", false, "Write referenced types first")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")

	flag.Parse()

	if ids != "" {
		config.IDs = strings.Split(ids, ",")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// Execute the dump
	ctx := context.Background()
	if err := portdump.Do(ctx, config); err != nil {
		log.Fatal(err)
	}
}
