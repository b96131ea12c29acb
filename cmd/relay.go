package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
	"github.com/spf13/cobra"
)

var (
	// Relay command flags
	relayListen          string
	relayUpstreamTimeout time.Duration
	relayPlain           bool
)

// relayCmd runs the relay as a long-lived HTTP server
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the relay server",
	Long: `Run the relay entrypoint as an HTTP server. It accepts envelopes on
POST / and POST /relay, and on the /ws websocket endpoint.
Examples:
  relay-tunnel relay --listen :8080`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := Container.Config
		if cmd.Flags().Changed("listen") {
			cfg.RelayListenAddress = relayListen
		}
		if cmd.Flags().Changed("upstream-timeout") {
			cfg.UpstreamTimeout = relayUpstreamTimeout
		}
		if relayPlain {
			cfg.Mode = model.EnvelopeModePlain
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := Container.InitializeRelayServer(ctx); err != nil {
			fmt.Printf("Error: Failed to start relay: %v\n", err)
			os.Exit(1)
		}
		if err := Container.RelayServer.Listen(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Fprintf(os.Stderr, "Relay listening on %s (envelope: %s)\n", Container.RelayServer.Addr(), Container.Sealer.Mode())
		if err := Container.RelayServer.Serve(ctx); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Relay stopped")
	},
}

func init() {
	RootCmd.AddCommand(relayCmd)

	// Add flags
	relayCmd.Flags().StringVarP(&relayListen, "listen", "l", "", "Address to listen on (default :8080)")
	relayCmd.Flags().DurationVar(&relayUpstreamTimeout, "upstream-timeout", 0, "Upstream fetch timeout (default 30s)")
	relayCmd.Flags().BoolVar(&relayPlain, "plain", false, "Disable envelope encryption (base64 only)")
}
