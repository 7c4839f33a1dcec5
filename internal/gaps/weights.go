package gaps

import (
	"sort"
)

// Adjustment is one multiplicative weight change handed to the external
// prompt-construction step for an underrepresented attribute value.
type Adjustment struct {
	Attribute  string  `json:"attribute"`
	Value      string  `json:"value"`
	Multiplier float64 `json:"multiplier"`
}

// Adjuster is the read-only feedback surface consumed by prompt
// construction. It never mutates upstream weights; callers get a fresh
// adjusted copy per request.
type Adjuster struct {
	maxBoost float64
}

func NewAdjuster(maxBoostMultiplier float64) *Adjuster {
	if maxBoostMultiplier <= 0 {
		maxBoostMultiplier = 3.0
	}
	return &Adjuster{maxBoost: maxBoostMultiplier}
}

// ActiveGaps filters to gaps with status identified or in_progress.
func (a *Adjuster) ActiveGaps(all []Gap) []Gap {
	active := make([]Gap, 0, len(all))
	for _, g := range all {
		if g.Active() {
			active = append(active, g)
		}
	}
	return active
}

// AdjustedWeights multiplies the base weight of every attribute/value pair
// an active gap points at (its missing and underrepresented values) by the
// gap's applied boost when set, else its recommended boost, capped at the
// max multiplier. All other weights pass through untouched.
func (a *Adjuster) AdjustedWeights(base map[string]map[string]float64, all []Gap) (map[string]map[string]float64, []Adjustment) {
	adjusted := make(map[string]map[string]float64, len(base))
	for attribute, values := range base {
		copied := make(map[string]float64, len(values))
		for value, weight := range values {
			copied[value] = weight
		}
		adjusted[attribute] = copied
	}

	var adjustments []Adjustment
	for _, g := range a.ActiveGaps(all) {
		values, ok := adjusted[g.Attribute]
		if !ok {
			continue
		}

		boost := g.RecommendedBoost
		if g.AppliedBoost > 0 {
			boost = g.AppliedBoost
		}
		if boost > a.maxBoost {
			boost = a.maxBoost
		}
		if boost <= 1.0 {
			continue
		}

		for _, value := range boostTargets(g) {
			if _, ok := values[value]; !ok {
				continue
			}
			values[value] *= boost
			adjustments = append(adjustments, Adjustment{
				Attribute:  g.Attribute,
				Value:      value,
				Multiplier: boost,
			})
		}
	}

	return adjusted, adjustments
}

// boostTargets merges a gap's missing and underrepresented values into a
// sorted, de-duplicated list.
func boostTargets(g Gap) []string {
	seen := make(map[string]bool, len(g.MissingValues)+len(g.UnderrepresentedValues))
	for _, v := range g.MissingValues {
		seen[v] = true
	}
	for _, v := range g.UnderrepresentedValues {
		seen[v] = true
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
