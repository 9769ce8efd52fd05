package memory

import "fmt"

// RemoteProviderConfig configures either the openai or gemini variant
// (§6 External Interfaces).
type RemoteProviderConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Dimensions int
	RateRPS    float64
	RateBurst  int
}

// ProviderConfig mirrors the memorySearch.{provider,model,remote,local,
// fallback} configuration keys (§6): which provider to try first, and
// what to fall back to if construction fails.
type ProviderConfig struct {
	Provider string // "openai", "gemini", or "local"
	Remote   RemoteProviderConfig
	Fallback string // "" disables fallback
}

// BuildProvider constructs the primary provider named by cfg.Provider and
// wraps it in a FallbackProvider per §4.2: construction failure degrades
// to cfg.Fallback (if set) rather than surfacing a hard error.
func BuildProvider(cfg ProviderConfig) (*FallbackProvider, error) {
	primary, err := newNamedProvider(cfg.Provider, cfg.Remote)

	var fallback EmbeddingProvider
	if cfg.Fallback != "" {
		fb, fbErr := newNamedProvider(cfg.Fallback, cfg.Remote)
		if fbErr != nil {
			return nil, fmt.Errorf("construct fallback provider %q: %w", cfg.Fallback, fbErr)
		}
		fallback = fb
	}

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return NewFallbackProvider(primary, err, fallback, reason)
}

func newNamedProvider(name string, remote RemoteProviderConfig) (EmbeddingProvider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:     remote.APIKey,
			Model:      remote.Model,
			BaseURL:    remote.BaseURL,
			Dimensions: remote.Dimensions,
			RateRPS:    remote.RateRPS,
			RateBurst:  remote.RateBurst,
		})
	case "gemini":
		return NewGeminiProvider(GeminiConfig{
			APIKey:  remote.APIKey,
			Model:   remote.Model,
			BaseURL: remote.BaseURL,
		})
	case "local", "":
		return NewLocalProvider(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", name)
	}
}
