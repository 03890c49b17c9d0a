// tictactoe-tui plays one local game against the configured opponent in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	app "github.com/rocketscienceinc/tictactoe-ai/internal"
	"github.com/rocketscienceinc/tictactoe-ai/internal/config"
	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ai/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-ai/internal/service"
	"github.com/rocketscienceinc/tictactoe-ai/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-ai/internal/tui"
)

var (
	flagConfig     = flag.String("config", "", "Path to config.yml (defaults to the XDG config dir)")
	flagDifficulty = flag.String("difficulty", "", "Opponent tier: easy, hard or remote_ai")
	flagLog        = flag.String("log", "", "Write logs to this file")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tictactoe-tui: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}

	difficulty, err := conf.Opponent.ParseDifficulty()
	if err != nil {
		return err
	}

	if *flagDifficulty != "" {
		if difficulty, err = entity.ParseDifficulty(*flagDifficulty); err != nil {
			return err
		}
	}

	logger, closeLog, err := newLogger(conf)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	advisor, err := app.NewAdvisor(ctx, logger, conf.Gemini)
	if err != nil {
		return err
	}

	controller := tictactoe.NewGameController(logger, service.NewBotService(), advisor,
		tictactoe.WithDelay(conf.Opponent.Delay),
		tictactoe.WithDifficulty(difficulty),
	)
	defer controller.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}

	application := tview.NewApplication().SetScreen(screen).EnableMouse(true)
	view := tui.New(application, controller, func() { _ = screen.Beep() })

	go view.Run(ctx)

	if err = application.SetRoot(view.Root(), true).Run(); err != nil {
		return fmt.Errorf("failed to run terminal ui: %w", err)
	}

	return nil
}

// loadConfig reads the -config file, then the XDG config file, then the environment alone.
func loadConfig() (*config.Config, error) {
	if *flagConfig != "" {
		return config.Load(*flagConfig)
	}

	if path, err := config.FindConfigFile(); err == nil {
		return config.Load(path)
	}

	return config.Load("")
}

// newLogger keeps the terminal clean: logs go to -log or are discarded.
func newLogger(conf *config.Config) (*slog.Logger, func(), error) {
	if *flagLog == "" {
		return pkg.NewLogger(io.Discard, conf.LogLevel), func() {}, nil
	}

	file, err := os.OpenFile(*flagLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return pkg.NewLogger(file, conf.LogLevel), func() { _ = file.Close() }, nil
}
