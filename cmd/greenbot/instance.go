package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"greenbot/pkg/api"
)

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Query and configure the GREEN-API instance",
}

var instanceStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the instance authorization state",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, client *api.Client, cmd *cobra.Command) error {
		st, err := client.GetStateInstance(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), st)
		return nil
	}),
}

var instanceSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Print the instance settings as YAML",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, client *api.Client, cmd *cobra.Command) error {
		settings, err := client.GetSettings(ctx)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(map[string]any(settings))
		if err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	}),
}

var instanceEnableWebhooksCmd = &cobra.Command{
	Use:   "enable-webhooks",
	Short: "Switch on incoming and outgoing webhooks if all are off",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, client *api.Client, cmd *cobra.Command) error {
		changed, err := api.EnableWebhooks(ctx, client)
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintln(cmd.OutOrStdout(), "Webhooks enabled")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Webhooks already enabled, nothing changed")
		}
		return nil
	}),
}

func init() {
	instanceCmd.AddCommand(instanceStateCmd)
	instanceCmd.AddCommand(instanceSettingsCmd)
	instanceCmd.AddCommand(instanceEnableWebhooksCmd)
}

type clientFunc func(ctx context.Context, client *api.Client, cmd *cobra.Command) error

// withClient builds the API client from the config around fn.
func withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := cliLogger(cfg)
		if err != nil {
			return err
		}
		client, err := api.ProvideClient(log, cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return fn(ctx, client, cmd)
	}
}
