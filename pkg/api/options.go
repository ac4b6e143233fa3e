package api

// Options tune a reply sent through a notification answer helper.
type Options struct {
	Quote       bool
	LinkPreview *bool
	TypingTime  int
}

// Option sets one field of Options.
type Option func(*Options)

// WithQuote quotes the message being answered.
func WithQuote() Option {
	return func(o *Options) { o.Quote = true }
}

// WithLinkPreview turns the link preview of a text reply on or off.
func WithLinkPreview(enabled bool) Option {
	return func(o *Options) { o.LinkPreview = &enabled }
}

// WithTypingTime shows the typing indicator for ms milliseconds first.
func WithTypingTime(ms int) Option {
	return func(o *Options) { o.TypingTime = ms }
}

// ApplyOptions folds opts into an Options value.
func ApplyOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
