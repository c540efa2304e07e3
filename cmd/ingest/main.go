package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"reimburse/internal/app"
	"reimburse/internal/logging"
	"reimburse/internal/service"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/reimburse/config.yaml if not provided)")
	flag.Parse()

	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		inputs = []string{cfg.Policies.Dir}
	}

	emb, err := app.NewEmbedder(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc := service.NewPolicyService(app.NewChunker(cfg), emb, nil, app.ServiceOptions(cfg), logger)
	summary, err := svc.Ingest(ctx, inputs)
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatal(err)
	}
}
