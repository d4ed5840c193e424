package main

import (
	"context"
	"flag"
	"log"

	"stock-ledger/internal/config"
	"stock-ledger/internal/db"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url is required (set LEDGER_DATABASE_URL)")
	}

	if err := db.Migrate(context.Background(), cfg.Database.URL, command); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("migrate %s: done", command)
}
