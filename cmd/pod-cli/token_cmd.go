package main

import (
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"memepod/native/token"
	"memepod/rpc"
)

func (c *cli) tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Token ledger helpers",
	}

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a mint (operator)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mint, err := flagKey(cmd, "mint", true)
			if err != nil {
				return err
			}
			if mint.IsZero() {
				mint = solana.NewWallet().PublicKey()
			}
			authority, err := flagKey(cmd, "authority", true)
			if err != nil {
				return err
			}
			decimals, _ := cmd.Flags().GetUint8("decimals")
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			payload := map[string]interface{}{
				"mint":     mint.String(),
				"decimals": decimals,
			}
			if !authority.IsZero() {
				payload["mintAuthority"] = authority.String()
			}
			var out rpc.MintResult
			if err := c.client().signed(cmd.Context(), key, "token_registerMint", payload, true, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	registerCmd.Flags().String("mint", "", "mint address; a fresh one is generated when omitted")
	registerCmd.Flags().Uint8("decimals", 6, "mint decimals")
	registerCmd.Flags().String("authority", "", "mint authority; defaults to the keystore address")

	mintCmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint tokens as the mint authority (operator)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mint, err := flagKey(cmd, "mint", false)
			if err != nil {
				return err
			}
			to, err := flagKey(cmd, "to", false)
			if err != nil {
				return err
			}
			decimals, _ := cmd.Flags().GetUint8("decimals")
			amount, err := flagUnits(cmd, "amount", decimals)
			if err != nil {
				return err
			}
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			payload := map[string]interface{}{
				"mint":   mint.String(),
				"owner":  to.String(),
				"amount": rpc.Uint64(amount),
			}
			var out rpc.AccountResult
			if err := c.client().signed(cmd.Context(), key, "token_mintTo", payload, true, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	mintCmd.Flags().String("mint", "", "mint address")
	mintCmd.Flags().String("to", "", "recipient wallet")
	mintCmd.Flags().String("amount", "", "amount in whole tokens")
	mintCmd.Flags().Uint8("decimals", 6, "decimals of the mint")

	airdropCmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Credit native lamports to a wallet (operator)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			to, err := flagKey(cmd, "to", false)
			if err != nil {
				return err
			}
			amount, err := flagUnits(cmd, "amount", token.NativeDecimals)
			if err != nil {
				return err
			}
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			payload := map[string]interface{}{
				"owner":    to.String(),
				"lamports": rpc.Uint64(amount),
			}
			var out rpc.BalanceResult
			if err := c.client().signed(cmd.Context(), key, "token_airdrop", payload, true, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	airdropCmd.Flags().String("to", "", "recipient wallet")
	airdropCmd.Flags().String("amount", "", "native amount, e.g. 1.5")

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a token balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := flagKey(cmd, "owner", false)
			if err != nil {
				return err
			}
			mint, err := flagKey(cmd, "mint", true)
			if err != nil {
				return err
			}
			params := map[string]interface{}{"owner": owner.String()}
			if !mint.IsZero() {
				params["mint"] = mint.String()
			}
			var out rpc.BalanceResult
			if err := c.client().call(cmd.Context(), "token_balance", params, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	balanceCmd.Flags().String("owner", "", "wallet address")
	balanceCmd.Flags().String("mint", "", "mint address; defaults to the native mint")

	cmd.AddCommand(registerCmd, mintCmd, airdropCmd, balanceCmd)
	return cmd
}
