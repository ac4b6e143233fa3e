package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"greenbot/pkg/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and edit conversation state",
	Long: `Inspect and edit per-sender conversation state in the configured backend.
Useful with the file and redis backends, which outlive the bot process.`,
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List senders that have a state",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, store state.Store, cmd *cobra.Command, args []string) error {
		lister, ok := store.(interface {
			Senders(ctx context.Context) ([]string, error)
		})
		if !ok {
			return errors.New("state backend cannot list senders")
		}
		senders, err := lister.Senders(ctx)
		if err != nil {
			return err
		}
		for _, sender := range senders {
			fmt.Fprintln(cmd.OutOrStdout(), sender)
		}
		return nil
	}),
}

var stateShowCmd = &cobra.Command{
	Use:   "show <sender>",
	Short: "Print a sender's state as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, store state.Store, cmd *cobra.Command, args []string) error {
		st, ok, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s has no state\n", args[0])
			return nil
		}
		out, err := yaml.Marshal(st)
		if err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	}),
}

var stateSetCmd = &cobra.Command{
	Use:   "set <sender> <name>",
	Short: "Put a sender into a named state",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(ctx context.Context, store state.Store, cmd *cobra.Command, args []string) error {
		return store.Set(ctx, args[0], args[1])
	}),
}

var stateClearCmd = &cobra.Command{
	Use:   "clear <sender>",
	Short: "Delete a sender's state and data",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, store state.Store, cmd *cobra.Command, args []string) error {
		return store.Delete(ctx, args[0])
	}),
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateSetCmd)
	stateCmd.AddCommand(stateClearCmd)
}

type storeFunc func(ctx context.Context, store state.Store, cmd *cobra.Command, args []string) error

// withStore opens the configured store around fn.
func withStore(fn storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := cliLogger(cfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		store, err := state.New(ctx, log, state.ConfigFrom(cfg))
		if err != nil {
			return fmt.Errorf("creating state store: %w", err)
		}
		if closer, ok := store.(io.Closer); ok {
			defer closer.Close()
		}

		return fn(ctx, store, cmd, args)
	}
}
