package api

import (
	"time"

	"go.uber.org/fx"

	"greenbot/pkg/config"
	"greenbot/pkg/logger"
)

// Module provides the API client and its Sender, Queue and Account views.
var Module = fx.Module("api",
	fx.Provide(
		ProvideClient,
		func(c *Client) Sender { return c },
		func(c *Client) Queue { return c },
		func(c *Client) Account { return c },
	),
)

// ConfigFrom maps the instance section of the application config.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		APIURL:     cfg.Instance.APIURL,
		MediaURL:   cfg.Instance.MediaURL,
		IDInstance: cfg.Instance.IDInstance,
		APIToken:   cfg.Instance.APITokenInstance,
		Timeout:    time.Duration(cfg.Instance.TimeoutSeconds) * time.Second,
	}
}

// ProvideClient builds the client for fx.
func ProvideClient(log *logger.Logger, cfg *config.Config) (*Client, error) {
	if err := config.RequireInstance(cfg); err != nil {
		return nil, err
	}
	return New(log, ConfigFrom(cfg))
}
