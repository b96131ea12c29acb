package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configCmd is the command to manage configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage Relay Tunnel configuration.`,
}

// configShowCmd is the command to display configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration",
	Long:  `Display Relay Tunnel configuration, environment overrides included.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := Container.Config

		fmt.Println("Relay Tunnel Configuration:")
		fmt.Printf("Relay URL: %s\n", cfg.RelayURL)
		fmt.Printf("Transport: %s\n", cfg.Transport)
		fmt.Printf("Listen Address: %s\n", cfg.ListenAddress)
		fmt.Printf("Engine: %s\n", cfg.Engine)
		fmt.Printf("Timeout: %s\n", cfg.Timeout)
		fmt.Printf("Envelope Mode: %s\n", cfg.Mode)

		fmt.Println("\nKey:")
		fmt.Printf("  Source: %s\n", cfg.KeySource)
		switch cfg.KeySource {
		case "env", "":
			fmt.Printf("  Variable: %s\n", cfg.KeyEnv)
		case "file":
			fmt.Printf("  File: %s\n", cfg.KeyFile)
		case "aws":
			fmt.Printf("  Secret: %s (%s)\n", cfg.SecretName, cfg.AWSRegion)
		case "mongo":
			fmt.Printf("  Secret: %s in %s.%s\n", cfg.SecretName, cfg.MongoDatabase, cfg.MongoCollection)
			fmt.Printf("  URI: %s\n", maskString(cfg.MongoURI))
		}

		fmt.Println("\nRelay:")
		fmt.Printf("  Listen Address: %s\n", cfg.RelayListenAddress)
		fmt.Printf("  Upstream Timeout: %s\n", cfg.UpstreamTimeout)
		fmt.Printf("  Max Body Bytes: %d\n", cfg.MaxBodyBytes)

		fmt.Printf("\nLog Level: %s\n", cfg.LogLevel)
		fmt.Printf("Log File: %s\n", cfg.LogFile)
		fmt.Printf("Debug: %v\n", cfg.Debug)
	},
}

// configSetCmd is the command to set configuration
var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set configuration",
	Long: `Set Relay Tunnel configuration.
Examples:
  relay-tunnel config set relay_url https://abc.lambda-url.us-east-1.on.aws/
  relay-tunnel config set transport websocket
  relay-tunnel config set timeout 20s
  relay-tunnel config set key_source file
  relay-tunnel config set key_file ~/.haxorport/relay.key
  relay-tunnel config set log_level debug`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		value := args[1]

		// Update configuration
		if err := Container.ConfigService.Set(Container.Config, key, value); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		// Save configuration
		if err := Container.ConfigService.SaveConfig(Container.Config, ConfigPath); err != nil {
			fmt.Printf("Error: Failed to save configuration: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Configuration %s successfully changed to %s\n", key, value)
	},
}

// configPathCmd prints where the configuration is read from
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		if ConfigPath != "" {
			fmt.Println(ConfigPath)
			return
		}
		path, err := Container.ConfigRepository.GetDefaultPath()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(path)
	},
}

// maskString masks a string for display
func maskString(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}
