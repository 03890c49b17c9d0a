// tictactoe-ai serves the single-player game over REST and WebSocket.
package main

import (
	"flag"
	"fmt"
	"os"

	app "github.com/rocketscienceinc/tictactoe-ai/internal"
	"github.com/rocketscienceinc/tictactoe-ai/internal/config"
	"github.com/rocketscienceinc/tictactoe-ai/internal/pkg"
)

var flagConfig = flag.String("config", "config.yml", "Path to config.yml")

func main() {
	flag.Parse()

	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	conf := config.MustLoad(*flagConfig)
	logger := pkg.NewLogger(os.Stdout, conf.LogLevel)

	logger.Info("configuration loaded",
		"config", *flagConfig,
		"storage", conf.Storage.Type,
		"difficulty", conf.Opponent.Difficulty,
		"remoteAI", conf.Gemini.APIKey != "",
	)

	if err := app.RunApp(logger, conf); err != nil {
		panic(fmt.Errorf("app run failed: %w", err))
	}
}
