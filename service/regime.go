package service

type Regime string

const (
	RegimeAbundant  Regime = "abundant"
	RegimeNormal    Regime = "normal"
	RegimePressured Regime = "pressured"
	RegimeCongested Regime = "congested"
	RegimeSaturated Regime = "saturated"
)

var Regimes = []Regime{RegimeAbundant, RegimeNormal, RegimePressured, RegimeCongested, RegimeSaturated}

// ClassifyRegime bands blobs by percent of target with inclusive upper bounds 50/90/120/150.
// The comparison is done on integers so the boundaries are exact.
func ClassifyRegime(blobs, target uint64) Regime {
	if target == 0 {
		return RegimeSaturated
	}
	pct := blobs * 100
	switch {
	case pct <= 50*target:
		return RegimeAbundant
	case pct <= 90*target:
		return RegimeNormal
	case pct <= 120*target:
		return RegimePressured
	case pct <= 150*target:
		return RegimeCongested
	default:
		return RegimeSaturated
	}
}

// Utilization is blobs as a percentage of target.
func Utilization(blobs, target uint64) float64 {
	if target == 0 {
		return 0
	}
	return float64(blobs*100) / float64(target)
}

// Saturation is blobs as a percentage of the per-block maximum.
func Saturation(blobs, max uint64) float64 {
	return Utilization(blobs, max)
}

func newRegimeCounts() map[Regime]uint64 {
	counts := make(map[Regime]uint64, len(Regimes))
	for _, r := range Regimes {
		counts[r] = 0
	}
	return counts
}

func toGwei(wei uint64) float64 {
	return float64(wei) / 1e9
}
