package handle

import (
	"context"
	"errors"
	"log/slog"
)

// Extractor runs the extraction stages over free-form text.
// The zero value is not usable; use NewExtractor.
type Extractor struct {
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets a custom logger. Extraction misses are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Extractor{logger: cfg.logger}
}

// Extract returns the unique handles found in text, in order of first
// appearance. Text with no recognizable handle yields nil.
func (e *Extractor) Extract(ctx context.Context, text string) []Handle {
	tokens := FilterBlocked(Tokenize(Normalize(text)))

	var out []Handle
	seen := make(map[Handle]bool)
	for _, token := range tokens {
		h, kind, err := Classify(token)
		switch {
		case errors.Is(err, ErrNoMatch):
			continue
		case err != nil:
			e.logger.DebugContext(ctx, "no handle in profile URL", "token", token, "rule", kind, "error", err)
			continue
		}
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

var defaultExtractor = &Extractor{logger: slog.New(slog.DiscardHandler)}

// Extract runs the extraction stages over text without logging.
func Extract(text string) []Handle {
	return defaultExtractor.Extract(context.Background(), text)
}
