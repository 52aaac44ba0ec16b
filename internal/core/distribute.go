package core

import (
	"errors"
	"fmt"
)

// ErrNoBuckets is returned when a distribution is requested over zero
// buckets; rejecting it up front keeps NaN and Inf targets out of charts.
var ErrNoBuckets = errors.New("bucket count must be at least 1")

// Distribute spreads a total target across period buckets under the given
// mode and returns one target per bucket, in bucket order.
//
//   - flat: every bucket receives the full total. This mirrors the
//     historical behavior the edit grids were built around; it is kept for
//     output compatibility even though an even split reads more naturally.
//   - burnup: bucket i receives perBucket*(i+1), a rising ramp ending near
//     the total.
//   - burndown: bucket 0 receives the total, bucket i receives
//     total - perBucket*i, a falling ramp toward zero.
//
// perBucket is total/buckets rounded to one decimal.
func Distribute(total float64, buckets int, mode DistributionMode) ([]float64, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("distribute: %w (got %d)", ErrNoBuckets, buckets)
	}
	if err := mode.Validate(); err != nil {
		return nil, fmt.Errorf("distribute: %w", err)
	}

	perBucket := RoundTo(total/float64(buckets), 1)
	targets := make([]float64, buckets)
	for i := range targets {
		switch mode {
		case BurnUp:
			targets[i] = RoundTo(perBucket*float64(i+1), 1)
		case BurnDown:
			targets[i] = RoundTo(total-perBucket*float64(i), 1)
		default:
			targets[i] = total
		}
	}
	return targets, nil
}
