package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"reimburse/internal/app"
	"reimburse/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		query   string
		topK    int
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/reimburse/config.yaml if not provided)")
	flag.StringVar(&query, "q", "", "Run one query, print JSON results and exit")
	flag.IntVar(&topK, "k", 0, "Number of results (defaults to retrieval.top_k)")
	flag.Parse()

	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
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

	if query != "" {
		res, err := r.Search(ctx, query, topK)
		if err != nil {
			log.Fatalf("search: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatal(err)
		}
		return
	}

	summary := fmt.Sprintf("%d chunks from %s (%s)", r.Len(), cfg.Index.MetaPath, emb.Name())
	m := tui.New(ctx, r, topK, summary)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
