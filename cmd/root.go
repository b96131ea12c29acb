package cmd

import (
	"fmt"
	"os"

	"github.com/haxorport/relay-tunnel/internal/di"
	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Container is the dependency injection container
	Container *di.Container

	// ConfigPath is the path to the configuration file
	ConfigPath string

	// EnvFile is the dotenv file loaded before configuration
	EnvFile string

	// LogLevel is the logging level
	LogLevel string

	// Debug dumps raw messages on every exchange
	Debug bool

	// RootCmd is the root command for CLI
	RootCmd = &cobra.Command{
		Use:   "relay-tunnel",
		Short: "Relay Tunnel - encrypted HTTP tunneling through a relay",
		Long: `Relay Tunnel captures HTTP requests on a local proxy port, seals them
and has a remote relay perform the real fetch.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is not an error
			if err := godotenv.Load(EnvFile); err != nil && !os.IsNotExist(err) {
				fmt.Printf("Error: Failed to load %s: %v\n", EnvFile, err)
				os.Exit(1)
			}

			// Initialize container
			Container = di.NewContainer()
			if err := Container.Initialize(ConfigPath); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}

			if cmd.Flags().Changed("debug") {
				Container.Config.Debug = Debug
			}
			if cmd.Flags().Changed("log-level") {
				Container.Config.LogLevel = model.LogLevel(LogLevel)
			}
			Container.ApplyLogLevel(string(Container.Config.LogLevel))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			// Close container
			if Container != nil {
				Container.Close()
			}
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Add global flags
	RootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "Path to configuration file (default: ~/.haxorport/relay-tunnel.yaml)")
	RootCmd.PersistentFlags().StringVar(&EnvFile, "env-file", ".env", "Dotenv file loaded before configuration")
	RootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "warn", "Set logging level (debug, info, warn, error)")
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Dump raw requests and responses")
}
