package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/haxorport/relay-tunnel/internal/domain/port"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/crypto"
	"github.com/haxorport/relay-tunnel/internal/infrastructure/secret"
	"github.com/spf13/cobra"
)

var (
	// Keygen command flags
	keygenSize   int
	keygenBase64 bool
	keygenSave   bool
)

// keygenCmd generates a shared key
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a shared key",
	Long: `Generate a random AES key, printed as hex (or base64).
With --save the key is written to the configured key source (file, aws or mongo).
Examples:
  relay-tunnel keygen
  relay-tunnel keygen --size 16 --base64
  relay-tunnel keygen --save`,
	Run: func(cmd *cobra.Command, args []string) {
		key, err := crypto.GenerateKey(keygenSize)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		encoded := crypto.EncodeKey(key, keygenBase64)

		if !keygenSave {
			fmt.Println(encoded)
			return
		}

		ctx := context.Background()
		store, err := secret.NewStore(ctx, Container.Config)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		writer, ok := store.(port.SecretWriter)
		if !ok {
			fmt.Printf("Error: Key source %q cannot store keys\n", Container.Config.KeySource)
			os.Exit(1)
		}
		if err := writer.PutSecret(ctx, Container.Config.SecretName, []byte(encoded)); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d-bit key stored in %s source as %s\n", keygenSize*8, Container.Config.KeySource, Container.Config.SecretName)
	},
}

func init() {
	RootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().IntVarP(&keygenSize, "size", "s", 32, "Key size in bytes (16, 24, 32)")
	keygenCmd.Flags().BoolVar(&keygenBase64, "base64", false, "Print the key as base64 instead of hex")
	keygenCmd.Flags().BoolVar(&keygenSave, "save", false, "Store the key in the configured key source")
}
