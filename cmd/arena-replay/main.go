// Command arena-replay tails an MTGA player log, assembles completed
// matches into replay artifacts, and persists them to one or more sinks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramonehamilton/arena-replay/internal/config"
	"github.com/ramonehamilton/arena-replay/internal/ingest"
	"github.com/ramonehamilton/arena-replay/internal/mtga/cards"
	"github.com/ramonehamilton/arena-replay/internal/sink"
	"github.com/ramonehamilton/arena-replay/internal/storage"
	"github.com/ramonehamilton/arena-replay/internal/storage/repository"
	"github.com/ramonehamilton/arena-replay/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "parse":
		runParse(os.Args[2:])
	case "info":
		runInfo(os.Args[2:])
	case "version":
		fmt.Println(version.GetVersion())
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: arena-replay <parse|info|version> [flags]")
}

func runParse(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	playerLog := fs.String("player-log", "", "path to the MTGA player log file (required)")
	outputDir := fs.String("output-dir", "", "directory for per-match JSON replay files")
	dbPath := fs.String("db", "", "SQLite database path for the relational sink")
	cardsDB := fs.String("cards-db", "", "path to the binary card reference catalog")
	configPath := fs.String("config", "", "path to an optional TOML config file")
	pollInterval := fs.Duration("poll-interval", 0, "interval between log polls")
	debug := fs.Bool("debug", false, "dump parse-error stream entries to stderr as they arrive")
	follow := fs.Bool("follow", false, "keep polling past end-of-file instead of exiting after one drain")
	fs.Parse(args)

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFrom(*configPath)
		if err != nil {
			log.Fatalf("arena-replay: load config: %v", err)
		}
		cfg = loaded
	}

	if *playerLog != "" {
		cfg.Log.FilePath = *playerLog
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *dbPath != "" {
		cfg.Output.DBPath = *dbPath
	}
	if *cardsDB != "" {
		cfg.Output.CardsDB = *cardsDB
	}
	if *pollInterval > 0 {
		cfg.Log.PollInterval = pollInterval.String()
	}
	if *debug {
		cfg.App.DebugMode = true
	}

	if cfg.Log.FilePath == "" {
		log.Fatalf("arena-replay: --player-log is required")
	}

	poll, err := cfg.GetLogPollInterval()
	if err != nil {
		log.Fatalf("arena-replay: %v", err)
	}
	rotationFallback, err := cfg.GetRotationFallback()
	if err != nil {
		log.Fatalf("arena-replay: %v", err)
	}

	var catalog *cards.Catalog
	if cfg.Output.CardsDB != "" {
		start := time.Now()
		catalog, err = cards.Open(cfg.Output.CardsDB)
		if err != nil {
			log.Fatalf("arena-replay: open card catalog: %v", err)
		}
		log.Printf("arena-replay: loaded %d cards from %s in %s", catalog.Len(), cfg.Output.CardsDB, time.Since(start))
	}

	multi, closeSinks := buildSinks(cfg)
	defer closeSinks()

	loop := ingest.New(cfg.Log.FilePath, rotationFallback, poll, *follow, catalog, multi)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.App.DebugMode {
		go drainErrors(ctx, loop.Errors)
	}

	if err := loop.Run(ctx); err != nil {
		log.Fatalf("arena-replay: %v", err)
	}

	for _, msg := range loop.Errors.Drain() {
		log.Printf("arena-replay: %s", msg)
	}
	log.Printf("arena-replay: shutdown complete")
}

// buildSinks wires the directory and relational sinks configured by cfg. At
// least one must be configured; Config.Validate states the same rule, but
// runParse does not call it, so the check is made here.
func buildSinks(cfg *config.Config) (sink.Multi, func()) {
	var multi sink.Multi
	var closers []func()

	if cfg.Output.Dir != "" {
		// Creating the output directory is the caller's job, not the sink's.
		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			log.Fatalf("arena-replay: create output directory: %v", err)
		}
		dirSink, err := sink.NewDirectorySink(cfg.Output.Dir)
		if err != nil {
			log.Fatalf("arena-replay: directory sink: %v", err)
		}
		multi = append(multi, dirSink)
	}

	if cfg.Output.DBPath != "" {
		dbCfg := storage.DefaultConfig(cfg.Output.DBPath)
		dbCfg.AutoMigrate = true
		db, err := storage.Open(dbCfg)
		if err != nil {
			log.Fatalf("arena-replay: open relational store: %v", err)
		}
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				log.Printf("arena-replay: close relational store: %v", err)
			}
		})
		repo := repository.NewReplayRepository(db)
		multi = append(multi, sink.NewRelationalSink(repo))
	}

	if len(multi) == 0 {
		log.Fatalf("arena-replay: at least one of --output-dir or --db must be set")
	}

	return multi, func() {
		for _, c := range closers {
			c()
		}
	}
}

func drainErrors(ctx context.Context, errs *ingest.ErrorStream) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, msg := range errs.Drain() {
				fmt.Fprintln(os.Stderr, msg)
			}
		}
	}
}

func runInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	cardsDB := fs.String("cards-db", "", "path to the binary card reference catalog (required)")
	fs.Parse(args)

	if *cardsDB == "" {
		log.Fatalf("arena-replay: --cards-db is required")
	}

	start := time.Now()
	catalog, err := cards.Open(*cardsDB)
	if err != nil {
		log.Fatalf("arena-replay: open card catalog: %v", err)
	}
	elapsed := time.Since(start)

	bySet := make(map[string]int)
	byType := make(map[string]int)
	for _, card := range catalog.Cards() {
		bySet[card.Set]++
		byType[card.Type().String()]++
	}

	fmt.Printf("card catalog: %s\n", *cardsDB)
	fmt.Printf("  cards loaded: %d\n", catalog.Len())
	fmt.Printf("  load duration: %s\n", elapsed)
	fmt.Printf("  sets: %d\n", len(bySet))
	fmt.Printf("  by type:\n")
	for _, t := range []string{"Creature", "Land", "Artifact", "Enchantment", "Planeswalker", "Instant", "Sorcery", "Battle", "Unknown"} {
		if n := byType[t]; n > 0 {
			fmt.Printf("    %-12s %d\n", t, n)
		}
	}
}
