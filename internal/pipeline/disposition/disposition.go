// Package disposition turns the verification verdict and final confidence into a document status.
package disposition

import (
	"fmt"

	"github.com/joseph-ayodele/waste-pipeline/constants"
)

// DefaultThreshold is the auto-approve threshold in percent.
const DefaultThreshold = 80

// Decide returns approved only when verification passed and confidence*100 reaches threshold.
// A non-positive threshold means DefaultThreshold.
func Decide(passed bool, confidence, threshold float64) constants.Disposition {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	switch {
	case !passed:
		return constants.DispositionNeedsReview
	case confidence*100 >= threshold:
		return constants.DispositionApproved
	default:
		return constants.DispositionNeedsReview
	}
}

// Explain renders the reason for a disposition as a processing log line.
func Explain(d constants.Disposition, passed bool, confidence, threshold float64) string {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	score := confidence * 100
	switch {
	case d == constants.DispositionError:
		return "Status: ERROR"
	case !passed:
		return "Status: NEEDS_REVIEW (verification failed)"
	case d == constants.DispositionApproved:
		return fmt.Sprintf("Status: APPROVED (quality %.0f%% >= %.0f%%)", score, threshold)
	default:
		return fmt.Sprintf("Status: NEEDS_REVIEW (quality %.0f%% < %.0f%%)", score, threshold)
	}
}
