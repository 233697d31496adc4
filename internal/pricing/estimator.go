package pricing

import (
	"errors"
	"fmt"
	"math"
)

// ErrInputOutOfRange reports pricing input that cannot be estimated, such as an
// unknown service tier. Room counts outside the table degrade to the nearest
// match instead.
var ErrInputOutOfRange = errors.New("input out of range")

const (
	// ServiceMinimum is the lowest base price ever quoted.
	ServiceMinimum = 150
	// RangePercent is the half-width of the quoted price band.
	RangePercent = 0.08
	roundingUnit = 10
)

// PriceEstimate is the quoted price range and duration for one request.
type PriceEstimate struct {
	Low         int    `json:"low"`
	High        int    `json:"high"`
	Hours       int    `json:"hours"`
	ServiceType string `json:"service_type"`
}

// match is the table entry chosen for a request.
type match struct {
	entry      Entry
	extraBaths int
	found      bool
}

// Estimator computes price estimates from an immutable price table.
type Estimator struct {
	tiers  map[ServiceType]tierIndex
	deltas map[ServiceType]int
}

// NewEstimator builds an estimator over a validated copy of table.
func NewEstimator(table PriceTable) (*Estimator, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	e := &Estimator{
		tiers:  make(map[ServiceType]tierIndex, len(table.Tiers)),
		deltas: make(map[ServiceType]int, len(table.Deltas)),
	}
	for tier, entries := range table.Tiers {
		e.tiers[tier] = newTierIndex(entries)
	}
	for tier, d := range table.Deltas {
		e.deltas[tier] = d
	}
	return e, nil
}

// MustNewEstimator is NewEstimator for tables known to be valid.
func MustNewEstimator(table PriceTable) *Estimator {
	e, err := NewEstimator(table)
	if err != nil {
		panic(fmt.Sprintf("pricing: %v", err))
	}
	return e
}

// Estimate returns the price range and duration for a home. It never fails:
// room counts below one are treated as one and sizes missing from the table
// fall back to the nearest smaller entry plus a per-bathroom surcharge.
// Callers validate the tier with ParseServiceType first.
func (e *Estimator) Estimate(bedrooms, bathrooms int, tier ServiceType) PriceEstimate {
	bedrooms = max(bedrooms, 1)
	bathrooms = max(bathrooms, 1)

	m := e.findClosest(bedrooms, bathrooms, tier)

	base := m.entry.Price + m.extraBaths*e.deltas[tier]
	base = max(base, ServiceMinimum)
	base = roundTo(float64(base), roundingUnit)

	return PriceEstimate{
		Low:         roundTo(float64(base)*(1-RangePercent), roundingUnit),
		High:        roundTo(float64(base)*(1+RangePercent), roundingUnit),
		Hours:       estimateHours(bedrooms, bathrooms, tier),
		ServiceType: string(tier),
	}
}

// findClosest picks the table entry used for pricing. Lookup order:
// exact key, same bedrooms with fewer bathrooms, the largest bedroom count not
// above the request (smallest bathroom count on ties), then the tier's last entry.
func (e *Estimator) findClosest(bedrooms, bathrooms int, tier ServiceType) match {
	idx := e.tiers[tier]

	if price, ok := idx.byKey[key(bedrooms, bathrooms)]; ok {
		return match{entry: Entry{bedrooms, bathrooms, price}, found: true}
	}

	for b := bathrooms; b >= 1; b-- {
		if price, ok := idx.byKey[key(bedrooms, b)]; ok {
			return newMatch(Entry{bedrooms, b, price}, bathrooms)
		}
	}

	var best *Entry
	for i := range idx.entries {
		cand := &idx.entries[i]
		if cand.Bedrooms > bedrooms {
			continue
		}
		if best == nil ||
			cand.Bedrooms > best.Bedrooms ||
			(cand.Bedrooms == best.Bedrooms && cand.Bathrooms < best.Bathrooms) {
			best = cand
		}
	}
	if best != nil {
		return newMatch(*best, bathrooms)
	}

	if n := len(idx.entries); n > 0 {
		return newMatch(idx.entries[n-1], bathrooms)
	}
	return match{}
}

func newMatch(entry Entry, requestedBaths int) match {
	return match{
		entry:      entry,
		extraBaths: max(0, requestedBaths-entry.Bathrooms),
		found:      true,
	}
}

// estimateHours applies the per-tier labour formula.
func estimateHours(bedrooms, bathrooms int, tier ServiceType) int {
	b, ba := float64(bedrooms), float64(bathrooms)
	switch tier {
	case Regular:
		return max(2, int(math.Ceil(b*0.75+ba*0.5)))
	case Deep:
		return max(3, int(math.Ceil(b*1.25+ba*0.75)))
	default:
		return max(4, int(math.Ceil(b*1.5+ba)))
	}
}

// roundTo rounds v half-up to the nearest multiple of unit.
func roundTo(v float64, unit int) int {
	u := float64(unit)
	return int(math.Floor(v/u+0.5)) * unit
}
