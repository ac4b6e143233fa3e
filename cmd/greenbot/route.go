package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"greenbot/pkg/event"
)

var routeCmd = &cobra.Command{
	Use:   "route [file...]",
	Short: "Route saved webhook payloads through the configured replies",
	Long: `Route one or more webhook JSON payloads as if the instance had delivered
them. With no file, or with "-", the payload is read from stdin.

Examples:
  greenbot route testdata/incoming.json
  curl -s ... | greenbot route -`,
	RunE: runRoute,
}

func runRoute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := cliLogger(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	out := cmd.OutOrStdout()

	r, cleanup, err := localRouter(ctx, cfg, log, out)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, name := range args {
		payload, err := readPayload(cmd.InOrStdin(), name)
		if err != nil {
			return err
		}

		ev, err := event.Decode(payload)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(out, "%s: %s", name, ev.Type)
		if kind := ev.Kind(); kind != "" {
			fmt.Fprintf(out, " (%s)", kind)
		}
		fmt.Fprintln(out)

		if err := r.Route(ctx, ev); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	m := r.Metrics()
	fmt.Fprintf(out, "routed=%d handled=%d unhandled=%d dropped=%d\n", m.Routed, m.Handled, m.Unhandled, m.Dropped)
	return nil
}

func readPayload(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return data, nil
}
