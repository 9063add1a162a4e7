package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/jask/reconsole/internal/api"
	"github.com/jask/reconsole/internal/config"
	"github.com/jask/reconsole/internal/credstore"
	"github.com/jask/reconsole/internal/imports"
	"github.com/jask/reconsole/internal/journal"
	"github.com/jask/reconsole/internal/registry"
	"github.com/jask/reconsole/internal/session"
	"github.com/jask/reconsole/internal/tenant"
	"github.com/jask/reconsole/internal/tui"
	"github.com/jask/reconsole/internal/users"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	creds := &credstore.Store{}

	store := session.NewStore(nil, creds)
	client := api.New(cfg.Server.BaseURL, time.Duration(cfg.Server.TimeoutSeconds)*time.Second, store.Token)
	store.SetClient(client)
	client.OnUnauthorized(store.HandleUnauthorized)

	// a saved credential that no longer verifies is silently discarded
	if err := store.Init(ctx); err != nil {
		log.Printf("warn: saved session not restored: %v", err)
	}

	var journalRepo *journal.Repo
	if cfg.Journal.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
			log.Fatalf("mkdir journal dir: %v", err)
		}
		db, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("open journal: %v", err)
		}
		defer db.Close()
		if err := journal.Migrate(db); err != nil {
			log.Fatalf("migrate journal: %v", err)
		}
		journalRepo = journal.NewRepo(db)
	}

	app := tui.New(ctx, cfg, tui.Deps{
		Session:  store,
		Registry: registry.NewClient(client),
		Imports:  imports.NewClient(client),
		Users:    users.NewClient(client),
		Tenant:   tenant.NewResolver(client, cfg.Tenant.Domain),
		Journal:  journalRepo,
		Client:   client,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	store.OnExpired(func(returnTo string) {
		p.Send(tui.SessionExpiredMsg{ReturnTo: returnTo})
	})

	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}
