package model

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// AgeBand is the age group an enrollment is priced by, e.g. "7-10".
type AgeBand string

// PriceTable maps an age band to its price in major currency units.
// Prices come from configuration, never from the client.
type PriceTable map[AgeBand]float64

// DefaultPriceTable holds the program prices in GHS.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		"4-6":   650,
		"7-10":  750,
		"11-14": 800,
	}
}

// Price returns the major-unit price for band.
func (t PriceTable) Price(band AgeBand) (float64, bool) {
	p, ok := t[band]
	return p, ok
}

// Bands lists the configured bands youngest first. Bands without a leading age
// sort after the numeric ones, by name.
func (t PriceTable) Bands() []AgeBand {
	out := make([]AgeBand, 0, len(t))
	for b := range t {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		li, iok := out[i].lowerAge()
		lj, jok := out[j].lowerAge()
		switch {
		case iok && jok && li != lj:
			return li < lj
		case iok != jok:
			return iok
		}
		return out[i] < out[j]
	})
	return out
}

func (b AgeBand) lowerAge() (int, bool) {
	lo, _, _ := strings.Cut(string(b), "-")
	n, err := strconv.Atoi(strings.TrimSpace(lo))
	return n, err == nil
}

// ToMinorUnits converts a major-unit amount to minor units (x100, rounded half away from zero).
func ToMinorUnits(major float64) int64 {
	return int64(math.Round(major * 100))
}
