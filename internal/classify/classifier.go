// Package classify assigns litter box visits to cat profiles using
// weight-based nearest-neighbor matching.
package classify

import (
	"fmt"
	"math"
	"strings"

	"github.com/catfall/litterlog/internal/model"
)

// Config holds the classification thresholds.
type Config struct {
	// Tolerance is the maximum weight distance (lbs) from a profile's
	// target weight for an assignment. The boundary is inclusive: a
	// record exactly Tolerance away from the nearest profile is assigned.
	Tolerance float64
	// MinWeight is the smallest plausible cat weight. Readings below it
	// are sensor faults, not ambiguous matches.
	MinWeight float64
	// MaxWeight is the largest plausible cat weight.
	MaxWeight float64
}

// DefaultConfig returns the thresholds used when none are configured.
func DefaultConfig() Config {
	return Config{
		Tolerance: 2.0,
		MinWeight: 0.5,
		MaxWeight: 40.0,
	}
}

// systemKeywords mark machine events that are not cat visits.
var systemKeywords = []string{
	"clean", "cycle", "reset", "power", "bonnet", "ready", "full",
}

// IsSystemActivity reports whether the activity describes a machine
// operation rather than a cat visit.
func IsSystemActivity(activity string) bool {
	lower := strings.ToLower(activity)
	for _, k := range systemKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Classify determines the outcome for a single record against the given
// profile set. It is a pure function of its arguments: no ambient state,
// deterministic for fixed inputs. Callers must ensure profiles is
// non-empty; imports with zero profiles are refused upstream.
func Classify(rec model.RawRecord, profiles []model.CatProfile, cfg Config) model.Result {
	if IsSystemActivity(rec.Activity) {
		return model.Result{Outcome: model.OutcomeSystem, Note: "machine operation"}
	}

	if rec.Weight < cfg.MinWeight {
		return model.Result{
			Outcome: model.OutcomeError,
			Note:    fmt.Sprintf("weight too low (%.1f lbs)", rec.Weight),
		}
	}
	if rec.Weight > cfg.MaxWeight {
		return model.Result{
			Outcome: model.OutcomeError,
			Note:    fmt.Sprintf("weight implausibly high (%.1f lbs)", rec.Weight),
		}
	}

	best, dist := Nearest(rec.Weight, profiles)
	if best == nil {
		return model.Result{Outcome: model.OutcomeUnknown, Note: "no matching profile"}
	}

	if dist <= cfg.Tolerance {
		id := best.ID
		return model.Result{CatID: &id, Outcome: model.OutcomeAssigned}
	}

	return model.Result{
		Outcome: model.OutcomeUnknown,
		Note:    fmt.Sprintf("no match within %.1f lbs (closest: %s at %.1f off)", cfg.Tolerance, best.Name, dist),
	}
}

// Nearest returns the profile whose target weight is closest to weight,
// along with the absolute distance. Ties break to the lowest profile ID so
// classification is reproducible across runs.
func Nearest(weight float64, profiles []model.CatProfile) (*model.CatProfile, float64) {
	var best *model.CatProfile
	bestDist := math.Inf(1)

	for i := range profiles {
		p := &profiles[i]
		dist := math.Abs(weight - p.TargetWeight)
		switch {
		case dist < bestDist:
			best, bestDist = p, dist
		case dist == bestDist && best != nil && p.ID < best.ID:
			best = p
		}
	}

	return best, bestDist
}
