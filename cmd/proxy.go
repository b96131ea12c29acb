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
	// Proxy command flags
	proxyListen    string
	proxyRelayURL  string
	proxyTimeout   time.Duration
	proxyEngine    string
	proxyTransport string
	proxyPlain     bool
)

// proxyCmd runs the tunnel client
var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the local tunnel client",
	Long: `Run the local intercepting proxy. Every captured request is sealed and
sent to the relay, and the relay's response is replayed to the client.
Examples:
  relay-tunnel proxy --relay-url https://abc.lambda-url.us-east-1.on.aws/
  relay-tunnel proxy --listen 127.0.0.1:8899 --transport websocket --relay-url wss://relay.example.com/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := Container.Config
		if cmd.Flags().Changed("listen") {
			cfg.ListenAddress = proxyListen
		}
		if cmd.Flags().Changed("relay-url") {
			cfg.RelayURL = proxyRelayURL
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Timeout = proxyTimeout
		}
		if cmd.Flags().Changed("engine") {
			cfg.Engine = model.EngineType(proxyEngine)
		}
		if cmd.Flags().Changed("transport") {
			cfg.Transport = model.TransportMode(proxyTransport)
		}
		if proxyPlain {
			cfg.Mode = model.EnvelopeModePlain
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := Container.InitializeClient(ctx); err != nil {
			fmt.Printf("Error: Failed to start tunnel client: %v\n", err)
			os.Exit(1)
		}
		if err := Container.Engine.Listen(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Fprintf(os.Stderr, "=================================================\n")
		fmt.Fprintf(os.Stderr, "Tunnel client listening on %s\n", Container.Engine.Addr())
		fmt.Fprintf(os.Stderr, "Relay: %s (%s)\n", cfg.RelayURL, cfg.Transport)
		fmt.Fprintf(os.Stderr, "Envelope: %s, engine: %s\n", Container.Sealer.Mode(), cfg.Engine)
		fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n")
		fmt.Fprintf(os.Stderr, "=================================================\n")

		if err := Container.Engine.Serve(ctx); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Tunnel client stopped")
	},
}

func init() {
	RootCmd.AddCommand(proxyCmd)

	// Add flags
	proxyCmd.Flags().StringVarP(&proxyListen, "listen", "l", "", "Local address to listen on (default 127.0.0.1:8899)")
	proxyCmd.Flags().StringVarP(&proxyRelayURL, "relay-url", "r", "", "Relay URL")
	proxyCmd.Flags().DurationVarP(&proxyTimeout, "timeout", "t", 0, "Relay round trip timeout (default 15s)")
	proxyCmd.Flags().StringVar(&proxyEngine, "engine", "", "Acceptance loop (raw, goproxy)")
	proxyCmd.Flags().StringVar(&proxyTransport, "transport", "", "Relay transport (http, websocket)")
	proxyCmd.Flags().BoolVar(&proxyPlain, "plain", false, "Disable envelope encryption (base64 only)")
}
