package main

import (
	"context"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"mashetes/repository"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	table := os.Getenv("REPOSITORY_TABLE")
	if table == "" {
		table = repository.DefaultTable
	}

	tables, err := repository.NewTables(connStr, table)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	if err := tables.EnsureTable(context.Background()); err != nil {
		log.Fatalf("create table %s: %v", table, err)
	}

	log.WithField("table", table).Info("storage init complete")
}
