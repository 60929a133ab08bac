// Command cannoli compiles and executes canvas files from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/kataras/golog"
	"github.com/spf13/cobra"

	"github.com/DeabLabs/cannoli-sub001/log"
)

func main() {
	root := &cobra.Command{
		Use:           "cannoli",
		Short:         "Run visual flow canvases against LLM providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error, none)")
	root.PersistentPreRun = func(*cobra.Command, []string) {
		logger := log.NewGologLogger(golog.New())
		logger.SetLevel(parseLogLevel(logLevel))
		log.SetDefaultLogger(logger)
	}
	root.AddCommand(newRunCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cannoli:", err)
		os.Exit(1)
	}
}

var logLevel string

func parseLogLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.LevelDebug
	case "info":
		return log.LevelInfo
	case "error":
		return log.LevelError
	case "none":
		return log.LevelNone
	default:
		return log.LevelWarn
	}
}
