package textsearch

import "log/slog"

// Defaults for session options.
const (
	DefaultSearchLimit    = 10
	DefaultQueryCacheSize = 256
)

type options struct {
	logger         *slog.Logger
	searchLimit    int
	queryCacheSize int
}

func defaultOptions() options {
	return options{
		searchLimit:    DefaultSearchLimit,
		queryCacheSize: DefaultQueryCacheSize,
	}
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSearchLimit sets the number of hits search and find return.
// Non-positive values keep the default of 10.
func WithSearchLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.searchLimit = n
		}
	}
}

// WithQueryCacheSize sets how many parsed queries the session memoizes.
// Zero disables the cache.
func WithQueryCacheSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.queryCacheSize = n
		}
	}
}
