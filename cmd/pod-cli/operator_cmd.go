package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"memepod/rpc"
)

func (c *cli) operatorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Operator credentials",
	}
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for token_* methods from the node's operator secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("secret-file")
			issuer, _ := cmd.Flags().GetString("issuer")
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if strings.TrimSpace(path) == "" {
				return fmt.Errorf("--secret-file is required")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read operator secret: %w", err)
			}
			secret := strings.TrimSpace(string(raw))
			if secret == "" {
				return fmt.Errorf("operator secret file %s is empty", path)
			}
			signed, err := rpc.IssueOperatorToken([]byte(secret), issuer, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	tokenCmd.Flags().String("secret-file", "", "operator secret written by podd (operator.secret in the config directory)")
	tokenCmd.Flags().String("issuer", "memepod-operator", "token issuer; must match the node's OperatorIssuer")
	tokenCmd.Flags().String("subject", "operator", "token subject")
	tokenCmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	cmd.AddCommand(tokenCmd)
	return cmd
}
