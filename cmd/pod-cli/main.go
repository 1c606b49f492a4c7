package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"memepod/cmd/internal/passphrase"
	"memepod/crypto"
)

const defaultKeystorePath = "wallet.keystore"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the global flags shared by every subcommand.
type cli struct {
	rpcURL        string
	program       string
	keystore      string
	operatorToken string
	passphrase    *passphrase.Source
}

func newRootCommand() *cobra.Command {
	c := &cli{
		passphrase: passphrase.NewSource(passphrase.DefaultEnv, "keystore passphrase"),
	}
	root := &cobra.Command{
		Use:          "pod-cli",
		Short:        "Client for the memepod fixed-price sale node",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.rpcURL, "rpc", rpcEndpointFromEnv(), "node JSON-RPC endpoint")
	root.PersistentFlags().StringVar(&c.program, "program", programFromEnv(), "program id envelopes are signed for")
	root.PersistentFlags().StringVar(&c.keystore, "keystore", defaultKeystorePath, "encrypted signing key")
	root.PersistentFlags().StringVar(&c.operatorToken, "operator-token", os.Getenv("MEMEPOD_OPERATOR_TOKEN"), "bearer token for operator methods")

	root.AddCommand(
		c.keygenCommand(),
		c.addressCommand(),
		c.registryCommand(),
		c.podCommand(),
		c.tokenCommand(),
		c.operatorCommand(),
	)
	return root
}

func (c *cli) client() *client {
	return newClient(c.rpcURL, c.program, c.operatorToken)
}

func (c *cli) loadKey() (solana.PrivateKey, error) {
	pass, err := c.passphrase.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(c.keystore, pass)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s not found. run pod-cli keygen first", c.keystore)
		}
		return nil, err
	}
	return key, nil
}

func (c *cli) keygenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key and write it to the keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(c.keystore); err == nil && !force {
				return fmt.Errorf("keystore %s already exists; pass --force to overwrite", c.keystore)
			}
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			pass, err := c.passphrase.Get()
			if err != nil {
				return err
			}
			if err := crypto.SaveToKeystore(c.keystore, key, pass); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Address: %s\nKeystore: %s\n", key.PublicKey(), c.keystore)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing keystore")
	return cmd
}

func (c *cli) addressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the keystore address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey().String())
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// flagKey reads a base58 key flag. Empty values are returned as the zero key
// when optional is set.
func flagKey(cmd *cobra.Command, name string, optional bool) (solana.PublicKey, error) {
	raw, _ := cmd.Flags().GetString(name)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if optional {
			return solana.PublicKey{}, nil
		}
		return solana.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return key, nil
}

// flagUnits parses a required human amount flag into base units.
func flagUnits(cmd *cobra.Command, name string, decimals uint8) (uint64, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("--%s is required", name)
	}
	v, err := parseUnits(raw, decimals)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}
