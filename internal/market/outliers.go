package market

import (
	"context"
	"math"
	"sort"

	"crypto-portfolio-tracker/internal/models"
)

const maxContamination = 0.5

// OutlierReport splits the owner's movers into coins that stand out on
// price, market cap or volume and the rest.
type OutlierReport struct {
	Outliers []models.Mover `json:"outliers"`
	Inliers  []models.Mover `json:"inliers"`
}

// Outliers runs outlier detection over the owner's gainers and losers.
func (s *Service) Outliers(ctx context.Context, userID uint, coinIDs []string) OutlierReport {
	gainers, losers := s.GainersLosers(ctx, userID, coinIDs)
	return DetectOutliers(append(gainers, losers...), s.cfg.OutlierContamination)
}

// DetectOutliers de-duplicates movers by coin id and flags the
// ceil(contamination*n) coins that deviate most from the group. A coin's
// deviation is its largest absolute z-score over log-scaled price, market
// cap and volume. Coins that do not deviate at all are never flagged.
// Both lists keep the order in which coins first appear.
func DetectOutliers(movers []models.Mover, contamination float64) OutlierReport {
	report := OutlierReport{Outliers: []models.Mover{}, Inliers: []models.Mover{}}

	seen := make(map[string]struct{}, len(movers))
	unique := make([]models.Mover, 0, len(movers))
	for _, m := range movers {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		unique = append(unique, m)
	}
	if len(unique) == 0 {
		return report
	}

	if contamination > maxContamination {
		contamination = maxContamination
	}
	k := 0
	if contamination > 0 {
		k = int(math.Ceil(contamination * float64(len(unique))))
	}

	scores := make([]float64, len(unique))
	for _, feature := range []func(models.Mover) float64{
		func(m models.Mover) float64 { return m.CurrentPrice },
		func(m models.Mover) float64 { return m.MarketCap },
		func(m models.Mover) float64 { return m.TotalVolume },
	} {
		values := make([]float64, len(unique))
		for i, m := range unique {
			values[i] = math.Log1p(math.Max(feature(m), 0))
		}
		for i, z := range zScores(values) {
			scores[i] = math.Max(scores[i], math.Abs(z))
		}
	}

	order := make([]int, len(unique))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	flagged := make(map[int]bool, k)
	for _, i := range order[:k] {
		if scores[i] > 0 {
			flagged[i] = true
		}
	}

	for i, m := range unique {
		if flagged[i] {
			report.Outliers = append(report.Outliers, m)
		} else {
			report.Inliers = append(report.Inliers, m)
		}
	}
	return report
}

// zScores standardizes values against their mean and population standard
// deviation. A constant series scores zero throughout.
func zScores(values []float64) []float64 {
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)))

	out := make([]float64, len(values))
	if std == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
