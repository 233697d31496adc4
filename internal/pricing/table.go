// Package pricing estimates cleaning prices from home size and service tier.
package pricing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServiceType is a cleaning service tier.
type ServiceType string

// Supported service tiers.
const (
	Regular ServiceType = "regular"
	Deep    ServiceType = "deep"
	Move    ServiceType = "move"
)

// ServiceTypes lists the tiers in display order.
func ServiceTypes() []ServiceType {
	return []ServiceType{Regular, Deep, Move}
}

// Entry is one row of a price table: the base price for a home with the given
// number of bedrooms and bathrooms.
type Entry struct {
	Bedrooms  int `yaml:"bedrooms" json:"bedrooms"`
	Bathrooms int `yaml:"bathrooms" json:"bathrooms"`
	Price     int `yaml:"price" json:"price"`
}

// Key returns the "bedrooms-bathrooms" lookup key.
func (e Entry) Key() string {
	return key(e.Bedrooms, e.Bathrooms)
}

func key(bedrooms, bathrooms int) string {
	return fmt.Sprintf("%d-%d", bedrooms, bathrooms)
}

// PriceTable holds the per-tier price entries and bathroom surcharges.
// Entries keep their declaration order.
type PriceTable struct {
	Tiers  map[ServiceType][]Entry `yaml:"tiers"`
	Deltas map[ServiceType]int     `yaml:"bathroom_delta"`
}

// tierIndex is the exact-match view of one tier.
type tierIndex struct {
	entries []Entry
	byKey   map[string]int
}

func newTierIndex(entries []Entry) tierIndex {
	idx := tierIndex{
		entries: append([]Entry(nil), entries...),
		byKey:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		idx.byKey[e.Key()] = e.Price
	}
	return idx
}

// DefaultTable returns the production price table (KB v2025-10, uplift included).
func DefaultTable() PriceTable {
	return PriceTable{
		Tiers: map[ServiceType][]Entry{
			Regular: {
				{1, 1, 90}, {2, 1, 120}, {2, 2, 140},
				{3, 2, 200}, {3, 3, 220},
				{4, 2, 240}, {4, 3, 260},
				{5, 3, 290}, {5, 4, 310},
				{6, 4, 330},
				{7, 4, 460}, {8, 5, 480}, {9, 5, 510}, {10, 6, 530},
			},
			Deep: {
				{1, 1, 280}, {2, 1, 300}, {2, 2, 330},
				{3, 2, 400}, {3, 3, 440},
				{4, 2, 480}, {4, 3, 530},
				{5, 3, 570}, {5, 4, 620},
				{6, 4, 660},
				{7, 4, 910}, {8, 5, 960}, {9, 5, 1010}, {10, 6, 1070},
			},
			Move: {
				{1, 1, 290}, {2, 1, 340}, {2, 2, 370},
				{3, 2, 480}, {3, 3, 530},
				{4, 2, 580}, {4, 3, 630},
				{5, 3, 690}, {5, 4, 740},
				{6, 4, 790},
				{7, 4, 1090}, {8, 5, 1160}, {9, 5, 1220}, {10, 6, 1270},
			},
		},
		Deltas: map[ServiceType]int{
			Regular: 20,
			Deep:    40,
			Move:    50,
		},
	}
}

// LoadTable reads a YAML price table file.
//
// The file layout mirrors PriceTable:
//
//	tiers:
//	  regular:
//	    - {bedrooms: 1, bathrooms: 1, price: 90}
//	bathroom_delta:
//	  regular: 20
func LoadTable(path string) (PriceTable, error) {
	if path == "" {
		return PriceTable{}, fmt.Errorf("price table path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return PriceTable{}, fmt.Errorf("failed to read price table %s: %w", path, err)
	}

	var table PriceTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return PriceTable{}, fmt.Errorf("failed to parse price table %s: %w", path, err)
	}

	if err := table.Validate(); err != nil {
		return PriceTable{}, err
	}

	return table, nil
}

// Validate checks that every tier is present with at least one well-formed entry.
func (t PriceTable) Validate() error {
	for _, tier := range ServiceTypes() {
		entries, ok := t.Tiers[tier]
		if !ok || len(entries) == 0 {
			return fmt.Errorf("price table: tier %q has no entries", tier)
		}
		for _, e := range entries {
			if e.Bedrooms < 1 || e.Bathrooms < 1 {
				return fmt.Errorf("price table: tier %q entry %s has non-positive room count", tier, e.Key())
			}
			if e.Price < 0 {
				return fmt.Errorf("price table: tier %q entry %s has negative price", tier, e.Key())
			}
		}
		if d := t.Deltas[tier]; d < 0 {
			return fmt.Errorf("price table: tier %q has negative bathroom delta", tier)
		}
	}
	return nil
}

// MonotonicityWarnings lists entries that break the assumed ordering: price
// should not drop when bedrooms grow at fixed bathrooms, or when bathrooms grow
// at fixed bedrooms. The estimator does not depend on it.
func (t PriceTable) MonotonicityWarnings() []string {
	var warnings []string
	for _, tier := range ServiceTypes() {
		idx := newTierIndex(t.Tiers[tier])
		for _, e := range idx.entries {
			for _, other := range idx.entries {
				sameBaths := other.Bathrooms == e.Bathrooms && other.Bedrooms > e.Bedrooms
				sameBeds := other.Bedrooms == e.Bedrooms && other.Bathrooms > e.Bathrooms
				if (sameBaths || sameBeds) && other.Price < e.Price {
					warnings = append(warnings, fmt.Sprintf("%s: %s (%d) is cheaper than %s (%d)",
						tier, other.Key(), other.Price, e.Key(), e.Price))
				}
			}
		}
	}
	return warnings
}

// StartingPrice returns the lowest table price of a tier.
func (t PriceTable) StartingPrice(tier ServiceType) int {
	entries := t.Tiers[tier]
	if len(entries) == 0 {
		return 0
	}
	lowest := entries[0].Price
	for _, e := range entries[1:] {
		if e.Price < lowest {
			lowest = e.Price
		}
	}
	return lowest
}

// ParseServiceType validates a raw tier name at the input boundary.
func ParseServiceType(s string) (ServiceType, error) {
	tier := ServiceType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ServiceTypes() {
		if tier == known {
			return tier, nil
		}
	}
	return "", fmt.Errorf("%w: unknown service type %q", ErrInputOutOfRange, s)
}
