// tide TUI - a terminal client for the tide chat host.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/tide-tui/internal/api"
	"github.com/jeranaias/tide-tui/internal/config"
	"github.com/jeranaias/tide-tui/internal/storage"
	"github.com/jeranaias/tide-tui/internal/stream"
	"github.com/jeranaias/tide-tui/internal/ui/chat"
	"github.com/jeranaias/tide-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async streaming
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

// forward delivers a message to the running program, if any. Controller
// callbacks fire before and after the program's lifetime; both are safe.
func forward(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default ~/.tide/config.toml)")
		serverURL   = flag.String("server", "", "chat host URL (overrides config)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tide %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	// Configuration: explicit path, else the standard lookup chain.
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Server.BaseURL = *serverURL
	}

	theme := styles.NewTheme(cfg.UI.Theme)

	// Local history cache. Losing it degrades to host-only history.
	var store *storage.Store
	if cfg.History.Enabled {
		dbPath, err := cfg.DatabasePath()
		if err == nil {
			if s, openErr := storage.Open(dbPath); openErr == nil {
				store = s
				defer store.Close()
			} else {
				fmt.Fprintf(os.Stderr, "Warning: history cache unavailable: %v\n", openErr)
			}
		}
	}

	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:     cfg.Server.BaseURL,
		Timeout:     cfg.Timeout(),
		ControlRate: rate.Limit(cfg.Server.ControlRate),
	})

	controller := stream.New(client, chat.Forward(forward))

	// Live config reload: edits to the config file restyle the running UI.
	if tomlPath, err := config.ConfigPathTOML(); err == nil {
		if watcher, err := config.NewWatcher(tomlPath, 500*time.Millisecond, func(next *config.Config) {
			forward(chat.ConfigReloadedMsg{Config: next})
		}); err == nil {
			if watcher.Watch() == nil {
				defer watcher.Close()
			}
		}
	}

	m := chat.New(cfg, theme, controller, client, store)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)

	programMu.Lock()
	programRef = p
	programMu.Unlock()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running tide: %v\n", err)
		os.Exit(1)
	}
}
