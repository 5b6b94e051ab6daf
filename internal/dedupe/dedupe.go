// Package dedupe detects likely duplicate catalog records with a weighted
// composite of name edit distance, address edit distance, and geodesic
// distance.
package dedupe

import (
	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/geo"
	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/normalize"
)

const (
	weightName    = 0.4
	weightAddress = 0.3
	weightGeo     = 0.3

	// geoFalloffMeters is where geo similarity reaches zero.
	geoFalloffMeters = 1000.0

	// DefaultThreshold is the composite score above which a pair is
	// flagged as a duplicate candidate.
	DefaultThreshold = 0.8
)

// Candidate pairs a potential duplicate with its composite score.
type Candidate struct {
	Place model.ImportedPlace `json:"place"`
	Score float64             `json:"score"`
}

// Cluster groups a record with all candidates scoring above the threshold.
type Cluster struct {
	Record     model.ImportedPlace `json:"record"`
	Candidates []Candidate         `json:"candidates"`
}

// Engine scans records pairwise. The zero threshold means DefaultThreshold.
type Engine struct {
	threshold float64
}

// NewEngine creates an Engine with the given threshold, or the default when
// threshold <= 0.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

// FindDuplicateClusters compares every unordered pair of records and groups
// candidates above the threshold under the earlier record. Quadratic in the
// catalog size; fine at current scale, revisit before the catalog grows
// past tens of thousands.
func (e *Engine) FindDuplicateClusters(records []model.ImportedPlace) []Cluster {
	log := zap.L().With(zap.String("component", "dedupe.engine"))

	var clusters []Cluster
	for i := range records {
		var candidates []Candidate
		for j := i + 1; j < len(records); j++ {
			score, applied := Similarity(&records[i], &records[j])
			if applied == 0 {
				continue
			}
			if score > e.threshold {
				candidates = append(candidates, Candidate{Place: records[j], Score: score})
			}
		}
		if len(candidates) > 0 {
			clusters = append(clusters, Cluster{Record: records[i], Candidates: candidates})
		}
	}

	log.Info("duplicate scan complete",
		zap.Int("records", len(records)),
		zap.Int("clusters", len(clusters)),
	)
	return clusters
}

// Similarity computes the composite score for one pair and the number of
// factors that applied. Factors where either record lacks the field are
// excluded and the weighted sum is renormalized over the applied weights;
// a pair sharing no comparable fields returns (0, 0) and must not be
// treated as a match.
func Similarity(a, b *model.ImportedPlace) (score float64, applied int) {
	var sum, weights float64

	if a.Name != "" && b.Name != "" {
		sum += weightName * editSimilarity(a.Name, b.Name)
		weights += weightName
		applied++
	}
	if a.Address != "" && b.Address != "" {
		sum += weightAddress * editSimilarity(a.Address, b.Address)
		weights += weightAddress
		applied++
	}
	if a.HasCoordinates() && b.HasCoordinates() {
		d := geo.HaversineMeters(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
		sim := 1 - d/geoFalloffMeters
		if sim < 0 {
			sim = 0
		}
		sum += weightGeo * sim
		weights += weightGeo
		applied++
	}

	if applied == 0 {
		return 0, 0
	}
	return sum / weights, applied
}

// editSimilarity is 1 − levenshtein/maxlen over folded strings.
func editSimilarity(a, b string) float64 {
	fa, fb := normalize.FoldKey(a), normalize.FoldKey(b)
	if fa == fb {
		return 1
	}
	maxLen := len([]rune(fa))
	if l := len([]rune(fb)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.Distance(fa, fb, nil)
	return 1 - float64(dist)/float64(maxLen)
}
