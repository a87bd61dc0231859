package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"token_swap/internal/api"
	"token_swap/internal/domain"
	"token_swap/internal/infra/client"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	server  string
	key     string
	secret  string
	timeout time.Duration
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "swapctl",
		Short:         "Token swap command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("SWAPCTL_SERVER", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&opts.key, "key", os.Getenv("SWAPCTL_KEY"), "API access key")
	root.PersistentFlags().StringVar(&opts.secret, "secret", os.Getenv("SWAPCTL_SECRET"), "API secret key")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")

	root.AddCommand(
		cmdState(opts),
		cmdRate(opts),
		cmdSwap(opts, false),
		cmdSwap(opts, true),
		cmdLiquidity(opts),
		cmdBalance(opts),
		cmdNotifications(opts),
	)
	return root
}

// run executes fn with a signed client and prints its result as JSON.
func run(cmd *cobra.Command, opts *globalOptions, fn func(context.Context, *client.Client) (any, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	out, err := fn(ctx, client.New(opts.server, opts.key, opts.secret))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseAsset(raw string) (domain.AssetID, error) {
	id := domain.AssetID(raw)
	if !domain.IsValidAssetID(id) {
		return "", fmt.Errorf("invalid asset %q (expected TICKER-abcdef)", raw)
	}
	return id, nil
}

func cmdState(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Read or change the operational state",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the current state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
					state, err := c.State(ctx)
					return api.StateResponse{State: state}, err
				})
			},
		},
		&cobra.Command{
			Use:   "set [Inactive|Active|Paused]",
			Short: "Change the state (owner only)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				state, err := domain.ParseOperationalState(args[0])
				if err != nil {
					return err
				}
				return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
					return c.SetState(ctx, state)
				})
			},
		},
	)
	return cmd
}

func cmdRate(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Inspect or set exchange rates (fixed-point, 1000 = 1:1)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every configured rate",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
					return c.Rates(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "get [from] [to]",
			Short: "Show the rate for a pair",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				from, err := parseAsset(args[0])
				if err != nil {
					return err
				}
				to, err := parseAsset(args[1])
				if err != nil {
					return err
				}
				return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
					return c.Rate(ctx, from, to)
				})
			},
		},
		&cobra.Command{
			Use:   "set [from] [to] [rate]",
			Short: "Set the rate for a pair (owner only)",
			Long: `Set the rate for a pair. The rate is scaled by 1000.

Example:
  $ swapctl rate set TOKENA-a1b2c3 TOKENB-d4e5f6 2000 --key owner-key --secret ...`,
			Args: cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				from, err := parseAsset(args[0])
				if err != nil {
					return err
				}
				to, err := parseAsset(args[1])
				if err != nil {
					return err
				}
				rate, err := domain.ParseAmount(args[2])
				if err != nil {
					return fmt.Errorf("invalid rate: %w", err)
				}
				return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
					return c.SetRate(ctx, from, to, rate)
				})
			},
		},
	)
	return cmd
}

func cmdSwap(opts *globalOptions, quote bool) *cobra.Command {
	use, short := "swap", "Swap tokens at the configured rate"
	if quote {
		use, short = "quote", "Preview a swap without executing it"
	}
	return &cobra.Command{
		Use:   use + " [from-asset] [amount] [to-asset]",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseAsset(args[0])
			if err != nil {
				return err
			}
			amount, err := domain.ParseAmount(args[1])
			if err != nil {
				return err
			}
			to, err := parseAsset(args[2])
			if err != nil {
				return err
			}
			req := api.SwapRequest{FromAsset: from, FromAmount: amount, ToAsset: to}
			return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
				if quote {
					return c.Quote(ctx, req)
				}
				return c.Swap(ctx, req)
			})
		},
	}
}

func cmdLiquidity(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liquidity",
		Short: "Provide, withdraw or inspect liquidity shares",
	}

	change := func(use, short string, remove bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " [asset] [amount]",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				asset, err := parseAsset(args[0])
				if err != nil {
					return err
				}
				amount, err := domain.ParseAmount(args[1])
				if err != nil {
					return err
				}
				return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
					if remove {
						return c.RemoveLiquidity(ctx, asset, amount)
					}
					return c.AddLiquidity(ctx, asset, amount)
				})
			},
		}
	}

	cmd.AddCommand(
		change("add", "Deposit tokens and credit your share", false),
		change("remove", "Withdraw tokens against your share", true),
		&cobra.Command{
			Use:   "get [address] [asset]",
			Short: "Show a provider's share, or all of them when asset is omitted",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				provider := domain.Address(args[0])
				if len(args) == 1 {
					return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
						return c.Shares(ctx, provider)
					})
				}
				asset, err := parseAsset(args[1])
				if err != nil {
					return err
				}
				return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
					return c.Share(ctx, provider, asset)
				})
			},
		},
	)
	return cmd
}

func cmdBalance(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address] [asset]",
		Short: "Show a token balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAsset(args[1])
			if err != nil {
				return err
			}
			return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
				return c.Balance(ctx, domain.Address(args[0]), asset)
			})
		},
	}
}

func cmdNotifications(opts *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List recent ledger notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, c *client.Client) (any, error) {
				return c.Notifications(ctx, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of notifications")
	return cmd
}
