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
	"reimburse/internal/claim"
	"reimburse/internal/logging"
	"reimburse/internal/rules"
	"reimburse/internal/service"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath   string
		claimPath string
		rulesOnly bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/reimburse/config.yaml if not provided)")
	flag.StringVar(&claimPath, "claim", "-", "Claim JSON file, or - for stdin")
	flag.BoolVar(&rulesOnly, "rules-only", false, "Run the deterministic rules only, without policy retrieval")
	flag.Parse()

	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	in, err := app.OpenInput(claimPath)
	if err != nil {
		log.Fatalf("open claim: %v", err)
	}
	c, err := claim.Decode(in)
	_ = in.Close()
	if err != nil {
		log.Fatalf("read claim: %v", err)
	}

	var out any
	if rulesOnly {
		res, err := rules.Evaluate(c)
		if err != nil {
			log.Fatalf("evaluate: %v", err)
		}
		out = res
	} else {
		emb, err := app.NewEmbedder(cfg)
		if err != nil {
			log.Fatal(err)
		}
		r, err := app.OpenRetriever(cfg, emb)
		if err != nil {
			log.Fatalf("open index: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		svc := service.NewPolicyService(nil, emb, r, app.ServiceOptions(cfg), logger)
		a, err := svc.Assess(ctx, c)
		if err != nil {
			log.Fatalf("assess: %v", err)
		}
		out = a
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal(err)
	}
}
