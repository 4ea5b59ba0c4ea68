package generation

import (
	"fmt"
	"strings"
	"time"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Sources  SourceReader
}

// New builds the Client named by opts.Provider.
func New(opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "stub":
		return Stub{}, nil
	case "webhook":
		return NewWebhook(opts.BaseURL, opts.APIKey, opts.Timeout)
	case "openai":
		return NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL, opts.Sources)
	case "anthropic":
		return NewAnthropic(opts.APIKey, opts.Model, opts.Sources)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", opts.Provider)
	}
}
