package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"greenbot/pkg/api"
)

// prepareInstance applies the configured account settings before any event
// is received.
func (b *Bot) prepareInstance(ctx context.Context) error {
	if overrides := b.cfg.Instance.Settings; len(overrides) > 0 {
		if err := b.api.SetSettings(ctx, api.Settings(overrides)); err != nil {
			return fmt.Errorf("applying instance settings: %w", err)
		}
		b.log.Info("Applied instance settings", zap.Int("keys", len(overrides)))
	}

	if !b.cfg.Instance.UpdateSettings {
		return nil
	}

	enabled, err := api.EnableWebhooks(ctx, b.api)
	if err != nil {
		return err
	}
	if enabled {
		b.log.Info("Enabled incoming and outgoing webhooks on the instance")
	}
	return nil
}
