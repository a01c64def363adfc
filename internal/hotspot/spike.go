package hotspot

import (
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/safecity/crimewatch-cli/internal/model"
)

// SpikeThreshold is the 24-hour cell count at which a spike alert fires.
// Inclusive: exactly SpikeThreshold incidents qualifies.
const SpikeThreshold = 10

// SpikeWindow is the lookback window for spike detection.
const SpikeWindow = 24 * time.Hour

// Spike reports a grid cell whose 24-hour incident count meets or exceeds
// the alert threshold. De-duplication and expiry belong to the alerting
// collaborator downstream; this package only reports which cells qualify.
type Spike struct {
	Key      CellKey `json:"cell"`
	Count    int     `json:"count"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
}

// clock is the package time source; tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the spike detector's time source. Pass nil to restore the
// real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// DetectSpikes windows the incidents to the last 24 hours, buckets them on
// the default grid, and returns every cell whose count meets or exceeds the
// threshold, ordered by cell key ascending.
func DetectSpikes(incidents []model.Incident, threshold int) []Spike {
	if threshold <= 0 {
		threshold = SpikeThreshold
	}

	recent := FilterWindow(incidents, clock.Now(), SpikeWindow)
	cells := Aggregate(recent, GridSize)

	var spikes []Spike
	for key, c := range cells {
		if c.Count >= threshold {
			spikes = append(spikes, Spike{
				Key:      key,
				Count:    c.Count,
				Severity: "high",
				Message:  fmt.Sprintf("High crime activity detected in this area: %d incidents in 24 hours", c.Count),
			})
		}
	}

	sort.Slice(spikes, func(i, j int) bool {
		if spikes[i].Key.Lat != spikes[j].Key.Lat {
			return spikes[i].Key.Lat < spikes[j].Key.Lat
		}
		return spikes[i].Key.Lng < spikes[j].Key.Lng
	})

	if len(spikes) > 0 {
		zap.L().Info("spike cells detected",
			zap.Int("cells", len(spikes)),
			zap.Int("threshold", threshold),
		)
	}
	return spikes
}
