package recsys

import (
	"fmt"
	"math/rand/v2"

	"github.com/mimus-sim/mimus/internal/config"
	"github.com/mimus-sim/mimus/internal/embed"
)

// FromConfig builds the configured recommender. The personalized
// strategy embeds with the local GGUF model when the build and the
// files allow it, and falls back to the deterministic hash embedder
// otherwise.
func FromConfig(cfg *config.Config, rng *rand.Rand) (Recommender, error) {
	limit := cfg.RecSys.MaxPosts

	switch cfg.RecSys.Strategy {
	case "random":
		return NewRandom(limit, rng), nil
	case "hot":
		return NewHot(limit, cfg.RecSys.HotPeriodSeconds), nil
	case "personalized":
		embedFn := embedFromConfig(cfg)
		return NewPersonalized(limit, cfg.RecSys.ExplorationFraction, embedFn, rng), nil
	default:
		return nil, fmt.Errorf("unknown recsys strategy %q", cfg.RecSys.Strategy)
	}
}

func embedFromConfig(cfg *config.Config) embed.Func {
	if cfg.Embedding.Provider == "local" {
		local := embed.NewLocal(embed.LocalConfig{
			LibPath:     cfg.Embedding.LibPath,
			ModelPath:   cfg.Embedding.ModelPath,
			GPULayers:   cfg.Embedding.GPULayers,
			ContextSize: cfg.Embedding.ContextSize,
		})
		if local.Available() {
			return local.Embed
		}
	}
	return embed.NewHasher(0).Embed
}
