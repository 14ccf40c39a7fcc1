package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/toxindex/aopex"
	"github.com/toxindex/aopex/export"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	topic := flag.String("topic", "", "Extraction topic, e.g. a chemical or stressor name")
	query := flag.String("query", "", "Free-form query; the topic is derived from it when -topic is not set")
	outDir := flag.String("out", ".", "Directory for reports and exports")
	noCache := flag.Bool("no-cache", false, "Skip the result cache")
	xlsx := flag.Bool("xlsx", false, "Also write a combined XLSX workbook per document")
	list := flag.Bool("list", false, "List cached documents with their status and exit")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// Local .env, if present.
	_ = godotenv.Load()

	if flag.NArg() == 0 && !*list {
		fmt.Fprintln(os.Stderr, "usage: aopex [flags] <document> [document...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := aopex.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	// Override from environment variables.
	if v := os.Getenv("AOPEX_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("AOPEX_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("AOPEX_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("AOPEX_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("AOPEX_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if cfg.Chat.APIKey == "" {
		switch cfg.Chat.Provider {
		case "gemini":
			cfg.Chat.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if *noCache {
		cfg.DisableCache = true
	}

	engine, err := aopex.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Cancel in-flight LLM calls on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *list {
		docs, err := engine.ListDocuments(ctx)
		if err != nil {
			slog.Error("listing documents", "error", err)
			os.Exit(1)
		}
		for _, d := range docs {
			fmt.Printf("%-10s %s  %s\n", d.Status, d.UpdatedAt, d.Path)
		}
		return
	}

	resolvedTopic := *topic
	if resolvedTopic == "" && *query != "" {
		resolvedTopic, err = engine.TopicFromQuery(ctx, *query)
		if err != nil {
			slog.Error("deriving topic", "error", err)
			os.Exit(1)
		}
		slog.Info("derived topic", "topic", resolvedTopic)
	}
	if resolvedTopic == "" {
		fmt.Fprintln(os.Stderr, "either -topic or -query is required")
		os.Exit(2)
	}

	failures := 0
	for _, path := range flag.Args() {
		res := engine.ProcessDocument(ctx, path, resolvedTopic)
		if res.Failed() {
			slog.Error("document failed", "path", res.Path, "error", res.Error, "message", res.Message)
			failures++
			continue
		}

		docStem := strings.TrimSuffix(filepath.Base(res.Path), filepath.Ext(res.Path))

		reportPath := filepath.Join(*outDir, fmt.Sprintf("Report_%s.md", docStem))
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			slog.Error("creating output dir", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(reportPath, []byte(engine.GenerateReport(res, resolvedTopic)), 0o644); err != nil {
			slog.Error("writing report", "path", reportPath, "error", err)
			failures++
			continue
		}

		paths, err := export.WriteCSVs(*outDir, docStem, res.KeyEvents, res.Relationships, res.Evidence)
		if err != nil {
			slog.Error("writing CSV exports", "error", err)
			failures++
			continue
		}
		if *xlsx {
			wb, err := export.WriteWorkbook(*outDir, docStem, res.KeyEvents, res.Relationships, res.Evidence)
			if err != nil {
				slog.Error("writing workbook", "error", err)
				failures++
				continue
			}
			paths = append(paths, wb)
		}

		slog.Info("document processed",
			"path", res.Path,
			"events", len(res.KeyEvents),
			"relationships", len(res.Relationships),
			"report", reportPath,
			"exports", paths)
	}

	if failures > 0 {
		os.Exit(1)
	}
}
