package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/facubara/alphaboard/internal/indicators"
)

// Confidence component weights
const (
	agreementWeight    = 0.60
	completenessWeight = 0.25
	volumeWeight       = 0.15

	highVolumePercentile = 0.8
)

// BullishScore is the weighted average of indicator signals rescaled from
// [-1, +1] to [0, 1]. NaN signals are skipped; with no valid signals the
// score is a neutral 0.5.
func BullishScore(outputs map[string]indicators.Output) float64 {
	var weightedSum, totalWeight float64
	for _, out := range outputs {
		if math.IsNaN(out.Signal) {
			continue
		}
		weightedSum += out.Signal * out.Weight
		totalWeight += out.Weight
	}
	if totalWeight == 0 {
		return 0.5
	}
	return (weightedSum/totalWeight + 1) / 2
}

// VolumeContext provides the volume-adequacy inputs for ConfidenceScore.
// Either a pre-computed percentile rank or the symbol's own volume against a
// sorted ascending volume list; when neither is available the component
// defaults to 0.5.
type VolumeContext struct {
	Percentile    *float64  // [0, 1] when pre-computed
	OwnVolume     float64
	SortedVolumes []float64 // ascending
}

// ConfidenceScore combines signal agreement (60%), indicator completeness
// (25%) and volume adequacy (15%), clipped to [0, 1].
func ConfidenceScore(outputs map[string]indicators.Output, vol VolumeContext) float64 {
	var signals []float64
	for _, out := range outputs {
		if !math.IsNaN(out.Signal) {
			signals = append(signals, out.Signal)
		}
	}

	agreement := 1.0
	if len(signals) >= 2 {
		// Population spread: the signals are the whole set, not a sample
		agreement = 1 - math.Min(stat.PopStdDev(signals, nil), 1)
	}

	completeness := float64(len(signals)) / float64(indicators.ExpectedCount())

	adequacy := volumeAdequacy(vol)

	score := agreement*agreementWeight + completeness*completenessWeight + adequacy*volumeWeight
	return math.Min(math.Max(score, 0), 1)
}

func volumeAdequacy(vol VolumeContext) float64 {
	var p float64
	switch {
	case vol.Percentile != nil:
		p = *vol.Percentile
	case len(vol.SortedVolumes) > 0:
		below := 0
		for _, v := range vol.SortedVolumes {
			if v <= vol.OwnVolume {
				below++
			}
		}
		p = float64(below) / float64(len(vol.SortedVolumes))
	default:
		return 0.5
	}

	if p >= highVolumePercentile {
		return 1
	}
	return p / highVolumePercentile
}
