package config

// Ranking weights are the one part of the configuration that operators
// tune as a tree, so they go through koanf: defaults, then an optional
// YAML file, then RANKING_ environment overrides
// (RANKING_RATING_MULTIPLIER → rating_multiplier).  The merged tree is
// validated before use.

import (
    "fmt"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/knadh/koanf/parsers/yaml"
    "github.com/knadh/koanf/providers/env"
    "github.com/knadh/koanf/providers/file"
    koanf "github.com/knadh/koanf/v2"
    "go.uber.org/zap"

    "github.com/iliyamo/marketplace-ranking/internal/ranking"
)

var validate = validator.New()

// LoadRankingWeights returns the ranking weights.  path may be empty, in
// which case only defaults and environment overrides apply.
func LoadRankingWeights(path string) (ranking.Weights, error) {
    w := ranking.DefaultWeights()
    k := koanf.New(".")

    if path != "" {
        if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
            zap.S().Errorw("ranking weights yaml load failed", "file", path, "err", err)
            return w, fmt.Errorf("load %s: %w", path, err)
        }
        zap.S().Debugw("ranking weights yaml loaded", "file", path)
    }

    if err := k.Load(env.Provider("RANKING_", ".", func(s string) string {
        return strings.ToLower(strings.TrimPrefix(s, "RANKING_"))
    }), nil); err != nil {
        zap.S().Errorw("ranking weights env overlay failed", "err", err)
        return w, err
    }

    // Unmarshal over the defaults so absent keys keep their value.  A
    // configured activity list replaces the default steps wholesale.
    if k.Exists("activity") {
        w.Activity = nil
    }
    if err := k.UnmarshalWithConf("", &w, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
        zap.S().Errorw("ranking weights unmarshal failed", "err", err)
        return w, err
    }
    if err := validate.Struct(w); err != nil {
        zap.S().Errorw("ranking weights validation failed", "err", err)
        return w, err
    }

    zap.S().Infow("ranking weights loaded",
        "rating_multiplier", w.RatingMultiplier,
        "per_review", w.PerReview,
        "volume_cap", w.VolumeCap,
        "activity_steps", len(w.Activity),
    )
    return w, nil
}
