package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/foodlens/foodlens-go/cmd"
	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/foodlens/foodlens-go/internal/logging"
)

// version and buildDate are set at link time.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	if settings.Main.Log.Enabled {
		closer, err := logging.EnableFileOutput(settings.Main.Log.Path, level)
		if err != nil {
			logging.Warn("File logging disabled", "path", settings.Main.Log.Path, "error", err)
		} else {
			defer func() {
				if err := closer(); err != nil {
					fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", err)
				}
			}()
		}
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
