package ledger

import (
	"time"

	"github.com/pkg/errors"
)

// AnomalyThreshold is the ratio between an amount and the recent mean above
// which a transaction is flagged.
const AnomalyThreshold = 1000.0

// DetectAnomaly scores the amount of the transaction against the recent mean
// amount, or against one unit when there is no history. It returns the score
// divided by AnomalyThreshold, or ErrAnomalyDetected when the score exceeds
// the threshold. The result is advisory.
func (tx *Transaction) DetectAnomaly(recent *ActivityWindow) (float64, error) {
	return tx.detectAnomaly(recent, time.Now())
}

func (tx *Transaction) detectAnomaly(recent *ActivityWindow, now time.Time) (float64, error) {
	if tx.Amount == 0 {
		return 0, nil
	}

	baseline := 1.0
	if recent != nil {
		if mean, ok := recent.MeanAmount(now); ok && mean > baseline {
			baseline = mean
		}
	}

	score := float64(tx.Amount) / baseline
	if score > AnomalyThreshold {
		return score / AnomalyThreshold, errors.Wrapf(ErrAnomalyDetected,
			"amount %d is anomalously large (score %.2f)", tx.Amount, score)
	}
	return score / AnomalyThreshold, nil
}
