// Package main is the entry point for the greenbot CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"greenbot/pkg/config"
	"greenbot/pkg/logger"
	"greenbot/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "greenbot",
	Short: "greenbot - a WhatsApp bot runtime for GREEN-API",
	Long: `greenbot receives GREEN-API notifications by long polling or webhook,
routes them to handlers by category and filters, and answers through the
instance HTTP API. Declarative replies and conversation state come from the
config file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// The config module resolves the file through the environment.
		if path := strings.TrimSpace(configPath); path != "" {
			os.Setenv(config.ConfigPathEnv, path)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetFullVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(instanceCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and validates the config outside of fx, for the
// one-shot commands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader().Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cliLogger writes warnings and errors to the console only.
func cliLogger(cfg *config.Config) (*logger.Logger, error) {
	lc := cfg.Logger.ToLoggerConfig()
	lc.Level = logger.LevelWarn
	lc.OutputPath = ""
	return logger.New(lc)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
