package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"memepod/native/token"
	"memepod/rpc"
)

func (c *cli) podCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pod",
		Short: "Create, trade and administer sale pods",
	}
	cmd.AddCommand(
		c.podCreateCommand(),
		c.podBuyCommand(),
		c.podEditCommand(),
		c.podWithdrawCommand(),
		c.podCloseCommand(),
		c.podGetCommand(),
		c.podListCommand(),
		c.podQuoteCommand(),
		c.podVaultsCommand(),
		c.podEventsCommand(),
	)
	return cmd
}

func addPodRefFlags(cmd *cobra.Command) {
	cmd.Flags().String("pod", "", "pod address")
	cmd.Flags().String("owner", "", "pod owner (with --base)")
	cmd.Flags().String("base", "", "base asset mint (with --owner)")
	cmd.Flags().String("quote", "", "quote asset mint; defaults to the native mint")
}

func podRefFromFlags(cmd *cobra.Command) (rpc.PodRef, error) {
	addr, err := flagKey(cmd, "pod", true)
	if err != nil {
		return rpc.PodRef{}, err
	}
	owner, err := flagKey(cmd, "owner", true)
	if err != nil {
		return rpc.PodRef{}, err
	}
	base, err := flagKey(cmd, "base", true)
	if err != nil {
		return rpc.PodRef{}, err
	}
	quote, err := flagKey(cmd, "quote", true)
	if err != nil {
		return rpc.PodRef{}, err
	}
	if !addr.IsZero() {
		if !owner.IsZero() || !base.IsZero() || !quote.IsZero() {
			return rpc.PodRef{}, fmt.Errorf("use either --pod or --owner/--base/--quote")
		}
		return rpc.PodRef{Pod: addr.String()}, nil
	}
	if owner.IsZero() || base.IsZero() {
		return rpc.PodRef{}, fmt.Errorf("--pod or both --owner and --base are required")
	}
	ref := rpc.PodRef{Owner: owner.String(), BaseAsset: base.String()}
	if !quote.IsZero() {
		ref.QuoteAsset = quote.String()
	}
	return ref, nil
}

// fetchPod resolves a reference so amounts can be scaled by the pod's
// decimals.
func (c *cli) fetchPod(ctx context.Context, ref rpc.PodRef) (*rpc.PodResult, error) {
	var out rpc.PodResult
	if err := c.client().call(ctx, "pod_get", ref, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func quoteDecimals(cmd *cobra.Command) uint8 {
	d, _ := cmd.Flags().GetUint8("quote-decimals")
	return d
}

func (c *cli) podCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a pod selling base tokens at a fixed price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := flagKey(cmd, "base", false)
			if err != nil {
				return err
			}
			quote, err := flagKey(cmd, "quote", true)
			if err != nil {
				return err
			}
			decimals, _ := cmd.Flags().GetUint8("decimals")
			amount, err := flagUnits(cmd, "amount", decimals)
			if err != nil {
				return err
			}
			price, err := flagUnits(cmd, "price", PriceDecimals)
			if err != nil {
				return err
			}
			expireIn, _ := cmd.Flags().GetDuration("expire-in")
			if expireIn <= 0 {
				return fmt.Errorf("--expire-in must be positive")
			}
			podName, _ := cmd.Flags().GetString("name")
			tokenName, _ := cmd.Flags().GetString("token-name")
			tokenSymbol, _ := cmd.Flags().GetString("symbol")

			key, err := c.loadKey()
			if err != nil {
				return err
			}
			payload := map[string]interface{}{
				"baseAsset":    base.String(),
				"podName":      podName,
				"tokenName":    tokenName,
				"tokenSymbol":  tokenSymbol,
				"baseAmount":   rpc.Uint64(amount),
				"tokenPrice":   rpc.Uint64(price),
				"tokenDecimal": decimals,
				"expireTime":   rpc.Uint64(time.Now().Add(expireIn).Unix()),
			}
			if !quote.IsZero() {
				payload["quoteAsset"] = quote.String()
			}
			var out rpc.PodResult
			if err := c.client().signed(cmd.Context(), key, "pod_create", payload, false, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().String("base", "", "mint of the token being sold")
	cmd.Flags().String("quote", "", "mint accepted as payment; defaults to the native mint")
	cmd.Flags().String("amount", "", "base tokens to deposit, in whole tokens")
	cmd.Flags().Uint8("decimals", 0, "decimals of the base mint")
	cmd.Flags().String("price", "", "base units received per quote unit (9 fractional digits)")
	cmd.Flags().Duration("expire-in", 7*24*time.Hour, "time until the sale expires")
	cmd.Flags().String("name", "", "pod name")
	cmd.Flags().String("token-name", "", "display name of the token")
	cmd.Flags().String("symbol", "", "token symbol")
	return cmd
}

func (c *cli) podBuyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Spend quote tokens on a pod",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := podRefFromFlags(cmd)
			if err != nil {
				return err
			}
			amount, err := flagUnits(cmd, "amount", quoteDecimals(cmd))
			if err != nil {
				return err
			}
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			payload := struct {
				rpc.PodRef
				QuoteAmount rpc.Uint64 `json:"quoteAmount"`
			}{ref, rpc.Uint64(amount)}
			var out rpc.PurchaseResult
			if err := c.client().signed(cmd.Context(), key, "pod_buy", payload, false, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	addPodRefFlags(cmd)
	cmd.Flags().String("amount", "", "quote tokens to spend, fee included")
	cmd.Flags().Uint8("quote-decimals", token.NativeDecimals, "decimals of the quote mint")
	return cmd
}

func (c *cli) podQuoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Preview a purchase without submitting it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := podRefFromFlags(cmd)
			if err != nil {
				return err
			}
			amount, err := flagUnits(cmd, "amount", quoteDecimals(cmd))
			if err != nil {
				return err
			}
			params := struct {
				rpc.PodRef
				QuoteAmount rpc.Uint64 `json:"quoteAmount"`
			}{ref, rpc.Uint64(amount)}
			var out rpc.QuoteResult
			if err := c.client().call(cmd.Context(), "pod_quoteBuy", params, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	addPodRefFlags(cmd)
	cmd.Flags().String("amount", "", "quote tokens to spend, fee included")
	cmd.Flags().Uint8("quote-decimals", token.NativeDecimals, "decimals of the quote mint")
	return cmd
}

func (c *cli) podEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Top up inventory and set a new price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := podRefFromFlags(cmd)
			if err != nil {
				return err
			}
			price, err := flagUnits(cmd, "price", PriceDecimals)
			if err != nil {
				return err
			}
			current, err := c.fetchPod(cmd.Context(), ref)
			if err != nil {
				return err
			}
			var additional uint64
			if raw, _ := cmd.Flags().GetString("add"); raw != "" {
				if additional, err = parseUnits(raw, current.Decimal); err != nil {
					return fmt.Errorf("--add: %w", err)
				}
			}
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			payload := struct {
				rpc.PodRef
				AdditionalBase rpc.Uint64 `json:"additionalBase"`
				TokenPrice     rpc.Uint64 `json:"tokenPrice"`
			}{ref, rpc.Uint64(additional), rpc.Uint64(price)}
			var out rpc.PodResult
			if err := c.client().signed(cmd.Context(), key, "pod_edit", payload, false, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	addPodRefFlags(cmd)
	cmd.Flags().String("add", "", "additional base tokens to deposit")
	cmd.Flags().String("price", "", "new price, base units per quote unit (9 fractional digits)")
	return cmd
}

func (c *cli) podWithdrawCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Move vault balances back to the pod owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := podRefFromFlags(cmd)
			if err != nil {
				return err
			}
			current, err := c.fetchPod(cmd.Context(), ref)
			if err != nil {
				return err
			}
			var baseOut, quoteOut uint64
			if raw, _ := cmd.Flags().GetString("base-amount"); raw != "" {
				if baseOut, err = parseUnits(raw, current.Decimal); err != nil {
					return fmt.Errorf("--base-amount: %w", err)
				}
			}
			if raw, _ := cmd.Flags().GetString("quote-amount"); raw != "" {
				if quoteOut, err = parseUnits(raw, quoteDecimals(cmd)); err != nil {
					return fmt.Errorf("--quote-amount: %w", err)
				}
			}
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			payload := struct {
				rpc.PodRef
				BaseAmount  rpc.Uint64 `json:"baseAmount"`
				QuoteAmount rpc.Uint64 `json:"quoteAmount"`
			}{ref, rpc.Uint64(baseOut), rpc.Uint64(quoteOut)}
			var out rpc.PodResult
			if err := c.client().signed(cmd.Context(), key, "pod_withdraw", payload, false, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	addPodRefFlags(cmd)
	cmd.Flags().String("base-amount", "", "base tokens to withdraw")
	cmd.Flags().String("quote-amount", "", "quote tokens to withdraw")
	cmd.Flags().Uint8("quote-decimals", token.NativeDecimals, "decimals of the quote mint")
	return cmd
}

func (c *cli) podCloseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Deactivate a pod",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := podRefFromFlags(cmd)
			if err != nil {
				return err
			}
			key, err := c.loadKey()
			if err != nil {
				return err
			}
			var out rpc.PodResult
			if err := c.client().signed(cmd.Context(), key, "pod_close", ref, false, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	addPodRefFlags(cmd)
	return cmd
}

func (c *cli) podGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show a pod",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := podRefFromFlags(cmd)
			if err != nil {
				return err
			}
			out, err := c.fetchPod(cmd.Context(), ref)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	addPodRefFlags(cmd)
	return cmd
}

func (c *cli) podListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every pod",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out []*rpc.PodResult
			if err := c.client().call(cmd.Context(), "pod_list", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func (c *cli) podVaultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaults",
		Short: "Show a pod's vault authority and balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := podRefFromFlags(cmd)
			if err != nil {
				return err
			}
			var out rpc.VaultsResult
			if err := c.client().call(cmd.Context(), "pod_vaults", ref, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	addPodRefFlags(cmd)
	return cmd
}

func (c *cli) podEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the event index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			podAddr, err := flagKey(cmd, "pod", true)
			if err != nil {
				return err
			}
			actor, err := flagKey(cmd, "actor", true)
			if err != nil {
				return err
			}
			eventType, _ := cmd.Flags().GetString("type")
			after, _ := cmd.Flags().GetUint64("after")
			limit, _ := cmd.Flags().GetInt("limit")
			params := map[string]interface{}{}
			if !podAddr.IsZero() {
				params["pod"] = podAddr.String()
			}
			if !actor.IsZero() {
				params["actor"] = actor.String()
			}
			if eventType != "" {
				params["type"] = eventType
			}
			if after > 0 {
				params["afterSequence"] = after
			}
			if limit > 0 {
				params["limit"] = limit
			}
			var out []rpc.EventResult
			if err := c.client().call(cmd.Context(), "pod_events", params, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().String("pod", "", "only events for this pod address")
	cmd.Flags().String("actor", "", "only events by this account")
	cmd.Flags().String("type", "", "event type, e.g. pod.buy")
	cmd.Flags().Uint64("after", 0, "only events after this sequence")
	cmd.Flags().Int("limit", 0, "maximum number of events")
	return cmd
}
