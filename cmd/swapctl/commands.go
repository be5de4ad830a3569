package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/simpleswap"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/token"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap/client"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap/transaction"
)

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var (
		configPath string
		config     *Config
		session    *client.Session
	)

	rootCmd := &cobra.Command{
		Use:          "swapctl",
		Short:        "Drive the simple swap program from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			config, err = loadConfig(configPath)
			if err != nil {
				return err
			}
			configureLogger(config)

			session, err = openSession(cmd.Context(), config, in, out)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if session == nil {
				return nil
			}
			return session.Close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "swapctl.yaml", "Path of an optional config file")
	flags.String("cluster", defaultConfig.Cluster, "Cluster moniker or RPC URL")
	flags.String("program", "", "Swap program id")
	flags.String("keypair", defaultConfig.Keypair, "Path of a solana-keygen keypair file")
	flags.String("log-level", defaultConfig.LogLevel, "Log level")
	flags.Uint("retries", defaultConfig.Retries, "Resubmissions after a retryable rejection")
	flags.BoolP("yes", "y", false, "Approve every transaction without prompting")

	_ = viper.BindPFlag("cluster", flags.Lookup("cluster"))
	_ = viper.BindPFlag("program_id", flags.Lookup("program"))
	_ = viper.BindPFlag("keypair", flags.Lookup("keypair"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("retries", flags.Lookup("retries"))
	_ = viper.BindPFlag("yes", flags.Lookup("yes"))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "address",
		Short: "Show the connected wallet address and balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAddress(cmd.Context(), out, session)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "mints",
		Short: "List the mints the wallet holds token accounts for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mints, err := session.ListOwnedTokenMints(cmd.Context())
			if err != nil {
				return err
			}
			for _, mint := range mints {
				fmt.Fprintln(out, base58.Encode(mint))
			}
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "associated <mint>",
		Short: "Show the wallet's associated token account for a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseKey(args[0])
			if err != nil {
				return err
			}

			addr, account, err := session.GetAssociatedAccount(cmd.Context(), mint)
			switch {
			case errors.Is(err, swap.ErrNotFound):
				fmt.Fprintf(out, "%s (not created)\n", base58.Encode(addr))
				return nil
			case errors.Is(err, swap.ErrInvalidOwner):
				fmt.Fprintf(out, "%s (not a token account)\n", base58.Encode(addr))
				return nil
			case err != nil:
				return err
			}

			fmt.Fprintf(out, "%s\nbalance: %d\n", base58.Encode(addr), account.Amount)
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "accounts <mint>",
		Short: "List every token account the wallet holds for a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseKey(args[0])
			if err != nil {
				return err
			}
			return printTokenAccounts(cmd.Context(), out, session, mint)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "store [initializer]",
		Short: "Show a swap store, by default the wallet's own",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initializer, err := keyOrSelf(session, args)
			if err != nil {
				return err
			}

			addr, store, err := session.GetSwapStore(cmd.Context(), initializer)
			if errors.Is(err, swap.ErrNotInitialized) && addr != nil {
				fmt.Fprintf(out, "%s (not initialized)\n", base58.Encode(addr))
				return nil
			} else if err != nil {
				return err
			}

			fmt.Fprintf(out, "store:          %s\n", base58.Encode(addr))
			fmt.Fprintf(out, "admin:          %s\n", base58.Encode(store.Admin))
			fmt.Fprintf(out, "funded account: %s\n", base58.Encode(store.TokenFundedAccount))
			fmt.Fprintf(out, "swapped:        %s SOL\n", formatSOL(store.AmountSwapped))
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "initialize <funded-token-account>",
		Short: "Create and initialize the wallet's swap store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			funded, err := parseKey(args[0])
			if err != nil {
				return err
			}

			outcome, err := withRetries(cmd.Context(), config.Retries, func() (*transaction.Outcome, error) {
				return session.Initialize(cmd.Context(), funded)
			})
			return printOutcome(out, outcome, err)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "swap <initializer> <mint> <amount-sol>",
		Short: "Swap SOL for tokens from an initializer's swap store",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			initializer, err := parseKey(args[0])
			if err != nil {
				return err
			}
			mint, err := parseKey(args[1])
			if err != nil {
				return err
			}
			lamports, err := parseSOL(args[2])
			if err != nil {
				return swap.InvalidInput(err)
			}

			if tokens, err := simpleswap.EstimateTokensOut(lamports); err == nil {
				fmt.Fprintf(out, "Swapping %s SOL for an expected %d tokens\n", formatSOL(lamports), tokens)
			}

			outcome, err := withRetries(cmd.Context(), config.Retries, func() (*transaction.Outcome, error) {
				return session.Swap(cmd.Context(), initializer, mint, lamports)
			})
			return printOutcome(out, outcome, err)
		},
	})

	var withdrawStore string
	withdrawCmd := &cobra.Command{
		Use:   "withdraw <amount-sol>",
		Short: "Withdraw SOL from a swap store, by default the wallet's own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := parseSOL(args[0])
			if err != nil {
				return swap.InvalidInput(err)
			}

			var store ed25519.PublicKey
			if len(withdrawStore) > 0 {
				store, err = parseKey(withdrawStore)
			} else {
				store, err = ownSwapStore(cmd.Context(), session)
			}
			if err != nil {
				return err
			}

			outcome, err := withRetries(cmd.Context(), config.Retries, func() (*transaction.Outcome, error) {
				return session.Withdraw(cmd.Context(), store, lamports)
			})
			return printOutcome(out, outcome, err)
		},
	}
	withdrawCmd.Flags().StringVar(&withdrawStore, "store", "", "Swap store address")
	rootCmd.AddCommand(withdrawCmd)

	return rootCmd
}

func keyOrSelf(session *client.Session, args []string) (ed25519.PublicKey, error) {
	if len(args) > 0 {
		return parseKey(args[0])
	}
	return session.GetAddress()
}

func ownSwapStore(ctx context.Context, session *client.Session) (ed25519.PublicKey, error) {
	owner, err := session.GetAddress()
	if err != nil {
		return nil, err
	}
	return session.GetSwapStoreAddress(ctx, owner)
}

func printAddress(ctx context.Context, out io.Writer, session *client.Session) error {
	owner, err := session.GetAddress()
	if err != nil {
		return err
	}
	balance, err := session.GetBalance(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, base58.Encode(owner))
	fmt.Fprintf(out, "balance: %s SOL\n", formatSOL(balance))
	return nil
}

func printTokenAccounts(ctx context.Context, out io.Writer, session *client.Session, mint ed25519.PublicKey) error {
	owner, err := session.GetAddress()
	if err != nil {
		return err
	}
	associated, err := token.GetAssociatedAccount(owner, mint)
	if err != nil {
		return swap.Classify(err)
	}

	accounts, err := session.ListTokenAccounts(ctx, mint)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if bytes.Equal(account, associated) {
			fmt.Fprintf(out, "%s (associated)\n", base58.Encode(account))
		} else {
			fmt.Fprintln(out, base58.Encode(account))
		}
	}
	return nil
}

func printOutcome(out io.Writer, outcome *transaction.Outcome, err error) error {
	if err != nil {
		if outcome != nil {
			fmt.Fprintf(out, "transaction %s failed\n", outcome.Signature)
		}
		if swap.IsRetryable(err) {
			return errors.Wrap(err, "retryable failure")
		}
		return err
	}

	fmt.Fprintf(out, "confirmed %s (slot %d)\n", outcome.Signature, outcome.Slot)
	return nil
}
