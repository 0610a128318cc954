package ranking

import "time"

// ActivityStep awards Points when the provider was active within Within.
type ActivityStep struct {
    Within time.Duration `koanf:"within" validate:"gt=0"`
    Points float64       `koanf:"points" validate:"gte=0"`
}

// Weights are the quality score tunables.  DefaultWeights reproduces the
// production constants; changing their relative behaviour needs product
// sign-off.
type Weights struct {
    RatingMultiplier float64        `koanf:"rating_multiplier" validate:"gte=0"`
    PerReview        float64        `koanf:"per_review"        validate:"gte=0"`
    VolumeCap        float64        `koanf:"volume_cap"        validate:"gte=0"`
    Activity         []ActivityStep `koanf:"activity"          validate:"dive"`
}

// DefaultWeights returns rating×20, 2 points per review capped at 20, and
// activity steps of 10/6/3 points for 24h/7d/30d.
func DefaultWeights() Weights {
    return Weights{
        RatingMultiplier: 20,
        PerReview:        2,
        VolumeCap:        20,
        Activity: []ActivityStep{
            {Within: 24 * time.Hour, Points: 10},
            {Within: 7 * 24 * time.Hour, Points: 6},
            {Within: 30 * 24 * time.Hour, Points: 3},
        },
    }
}

// activityPoints returns the points of the first step whose window
// contains since.  Steps are expected in ascending Within order.
func (w Weights) activityPoints(since time.Duration) float64 {
    for _, s := range w.Activity {
        if since <= s.Within {
            return s.Points
        }
    }
    return 0
}
