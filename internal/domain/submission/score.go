package submission

import (
	"fmt"
	"time"
)

// Scoring constants. The score is severityWeight*severityMultiplier plus a
// wait-time boost of one point per waitBoostHours waited, capped at
// maxWaitBoost. The boost cap bounds how far waiting alone can lift a
// report: a mild submission tops out at 7.0, so a severe one (starting at
// 6.0) overtakes any mild within two days regardless of how stale the mild
// is.
const (
	severityMultiplier = 2.0
	waitBoostHours     = 24.0
	maxWaitBoost       = 5.0
)

var severityWeights = map[Severity]float64{
	SeverityMild:     1,
	SeverityModerate: 2,
	SeveritySevere:   3,
}

// Score computes the triage priority of a submission at the given instant.
// Higher is more urgent. Clocks are passed in, never read, so the same
// inputs always yield the same score. A now earlier than submittedAt counts
// as zero hours waited.
func Score(severity Severity, submittedAt, now time.Time) (float64, error) {
	weight, ok := severityWeights[severity]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSeverity, severity)
	}

	hoursWaited := now.Sub(submittedAt).Hours()
	if hoursWaited < 0 {
		hoursWaited = 0
	}

	boost := hoursWaited / waitBoostHours
	if boost > maxWaitBoost {
		boost = maxWaitBoost
	}

	return weight*severityMultiplier + boost, nil
}
