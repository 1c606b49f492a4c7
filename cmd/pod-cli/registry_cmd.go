package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"memepod/native/token"
	"memepod/rpc"
)

func (c *cli) registryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect or administer the global configuration registry",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialise the registry with the keystore address as owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			var out rpc.RegistryResult
			if err := c.client().signed(cmd.Context(), key, "mainstate_init", nil, false, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Replace every registry field",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := flagKey(cmd, "owner", false)
			if err != nil {
				return err
			}
			recipient, err := flagKey(cmd, "fee-recipient", false)
			if err != nil {
				return err
			}
			creationFee, err := flagUnits(cmd, "creation-fee", token.NativeDecimals)
			if err != nil {
				return err
			}
			tradingFee, _ := cmd.Flags().GetUint16("trading-fee")
			creatorFee, _ := cmd.Flags().GetUint16("creator-fee")
			ownerFee, _ := cmd.Flags().GetUint16("owner-fee")
			for _, name := range []string{"trading-fee", "creator-fee", "owner-fee"} {
				if !cmd.Flags().Changed(name) {
					return fmt.Errorf("--%s is required", name)
				}
			}
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			fee := rpc.Uint64(creationFee)
			payload := map[string]interface{}{
				"owner":        owner.String(),
				"feeRecipient": recipient.String(),
				"creationFee":  &fee,
				"tradingFee":   tradingFee,
				"creatorFee":   creatorFee,
				"ownerFee":     ownerFee,
			}
			var out rpc.RegistryResult
			if err := c.client().signed(cmd.Context(), key, "mainstate_update", payload, false, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	updateCmd.Flags().String("owner", "", "new registry owner")
	updateCmd.Flags().String("fee-recipient", "", "account credited with creation and trading fees")
	updateCmd.Flags().String("creation-fee", "", "pod creation fee in native units (e.g. 0.1)")
	updateCmd.Flags().Uint16("trading-fee", 0, "trading fee in parts per million")
	updateCmd.Flags().Uint16("creator-fee", 0, "creator fee in parts per million")
	updateCmd.Flags().Uint16("owner-fee", 0, "owner fee in parts per million")

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out rpc.RegistryResult
			if err := c.client().call(cmd.Context(), "mainstate_get", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.AddCommand(initCmd, updateCmd, getCmd)
	return cmd
}
