// Package main is the entry point for the Ticketflow engine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anthropics/ticketflow-engine/internal/ability"
	"github.com/anthropics/ticketflow-engine/internal/backend"
	"github.com/anthropics/ticketflow-engine/internal/config"
	"github.com/anthropics/ticketflow-engine/internal/domain"
	"github.com/anthropics/ticketflow-engine/internal/guard"
	"github.com/anthropics/ticketflow-engine/internal/ipc"
	"github.com/anthropics/ticketflow-engine/internal/stage"
	"github.com/anthropics/ticketflow-engine/internal/store"
	"github.com/anthropics/ticketflow-engine/internal/workflow"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration JSON file")
	submitPath := flag.String("submit", "", "process a single ticket payload JSON file and exit")
	answer := flag.String("answer", "", "clarification response for -submit mode")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ticketflow %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > TF_CONFIG env > auto-discover next to exe.
	path := *configPath
	if path == "" {
		path = os.Getenv("TF_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}

	var cfg *config.Config
	var err error
	if path == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.Load(path)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Wire ability registry and backends.
	registry := ability.Defaults()
	if err := registry.Validate(); err != nil {
		log.Fatalf("validate ability registry: %v", err)
	}

	var kb []backend.KBEntry
	for _, e := range cfg.KnowledgeBase {
		kb = append(kb, backend.KBEntry{Title: e.Title, Content: e.Content, Category: e.Category})
	}
	router := backend.NewRouter(
		registry,
		time.Duration(cfg.AbilityTimeoutSec)*time.Second,
		backend.NewCommon(),
		backend.NewExtended(kb),
	)

	policy := stage.EscalationPolicy{
		EscalateBelow:         cfg.Escalation.EscalateBelow,
		PriorityEscalateBelow: cfg.Escalation.PriorityEscalateBelow,
	}
	engine := workflow.NewEngine(db, router, policy)

	if *submitPath != "" {
		if err := submitOnce(engine, *submitPath, *answer); err != nil {
			log.Fatalf("submit: %v", err)
		}
		return
	}

	// Wire HTTP API.
	handler := &ipc.Handler{
		Engine:    engine,
		Guard:     guard.NewGuard(cfg.RateLimitPerMinute),
		DB:        db,
		EventRepo: &store.EventRepo{},
		AuditRepo: &store.AuditRepo{},
	}
	srv := ipc.NewServer(handler, cfg.ListenAddr)

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("ticketflow engine listening on %s", cfg.ListenAddr)

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// submitOnce runs a single payload through the workflow, resuming with the
// provided answer when the run suspends, and prints the final payload.
func submitOnce(engine *workflow.Engine, path, answer string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	var payload domain.TicketPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	ctx := context.Background()
	st, err := engine.Submit(ctx, payload)
	if err != nil {
		return err
	}
	if st.Status == domain.StatusSuspended {
		log.Printf("run suspended: %s", st.Context.ClarificationRequest)
		st, err = engine.Resume(ctx, payload.TicketID, answer)
		if err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(workflow.BuildFinalPayload(st), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal final payload: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// discoverConfig looks for config.json next to the executable, then in the cwd.
func discoverConfig() string {
	// Next to executable.
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	// Current working directory.
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}
