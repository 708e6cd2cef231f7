package snapshot

import (
	"math"
	"time"

	"marketaoc/pkg/core/facade"
)

// AnomalyKind classifies a detected price anomaly.
type AnomalyKind string

const (
	AnomalySurge AnomalyKind = "surge"
	AnomalyDrop  AnomalyKind = "drop"
)

// AnomalyEvent records a bar-to-bar move past the configured threshold.
type AnomalyEvent struct {
	Symbol        string      `json:"symbol"`
	Name          string      `json:"name,omitempty"`
	Kind          AnomalyKind `json:"kind"`
	ChangePercent float64     `json:"change_percent"`
	TriggerPrice  float64     `json:"trigger_price"`
	PreviousPrice float64     `json:"previous_price"`
	Volume        float64     `json:"volume"`
	DetectedAt    time.Time   `json:"detected_at"`
}

// DetectAnomalies scans a bar sequence for close-to-close moves whose
// magnitude is at least thresholdPct percent, emitting one event per
// offending bar. Pure function; bars are expected in ascending date order.
func DetectAnomalies(symbol, name string, bars []facade.Bar, thresholdPct float64, detectedAt time.Time) []AnomalyEvent {
	if thresholdPct <= 0 || len(bars) < 2 {
		return nil
	}

	var events []AnomalyEvent
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1], bars[i]
		if prev.Close == 0 {
			continue
		}
		changePct := (cur.Close - prev.Close) / prev.Close * 100
		if math.Abs(changePct) < thresholdPct {
			continue
		}
		kind := AnomalySurge
		if changePct < 0 {
			kind = AnomalyDrop
		}
		events = append(events, AnomalyEvent{
			Symbol:        symbol,
			Name:          name,
			Kind:          kind,
			ChangePercent: changePct,
			TriggerPrice:  cur.Close,
			PreviousPrice: prev.Close,
			Volume:        cur.Volume,
			DetectedAt:    detectedAt,
		})
	}
	return events
}
