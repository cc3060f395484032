package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skillfleet/fleet/internal/api"
	"github.com/skillfleet/fleet/internal/command"
	"github.com/skillfleet/fleet/internal/config"
	"github.com/skillfleet/fleet/internal/log"
	"github.com/skillfleet/fleet/internal/session"
	"github.com/skillfleet/fleet/internal/tui"
	"github.com/skillfleet/fleet/internal/tui/app"
)

const historyFile = "history.db"

// loadProject returns the working directory and its config.
func loadProject() (string, *config.Config, error) {
	projectRoot, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("getting current directory: %w", err)
	}
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return "", nil, fmt.Errorf("loading config: %w", err)
	}
	return projectRoot, cfg, nil
}

func newClient(cfg *config.Config) *api.Client {
	return api.New(cfg.API.BaseURL, cfg.API.Token, cfg.RequestTimeout())
}

// openHistory opens the conversation history, or returns nil when history
// is disabled.
func openHistory(projectRoot string, cfg *config.Config) (*session.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	dir := config.Dir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	return session.NewStore(filepath.Join(dir, historyFile))
}

// runConsole starts the interactive console. A non-empty jobID is attached
// to as soon as the console opens.
func runConsole(jobID string) error {
	projectRoot, cfg, err := loadProject()
	if err != nil {
		return err
	}

	debugLog, closer, err := log.NewDebug(projectRoot, debug)
	if err != nil {
		return err
	}
	defer closer.Close()

	logger, err := log.NewLogger(projectRoot)
	if err != nil {
		// The event log is best effort.
		debugLog.WithError(err).Warn("event log unavailable")
		logger = nil
	}

	store, err := openHistory(projectRoot, cfg)
	if err != nil {
		debugLog.WithError(err).Warn("history unavailable")
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	client := newClient(cfg)
	console := app.New(cfg, projectRoot, app.Deps{
		Client:   client,
		Executor: command.NewAPIExecutor(client),
		Logger:   logger,
		Debug:    debugLog,
		Store:    store,
	})
	defer console.Close()

	if jobID != "" {
		console.Resume(jobID)
	}
	return tui.Run(console)
}
