package fl_test

import (
	"fmt"
	"testing"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKrumAggregate(t *testing.T) {
	honest := []fl.Contribution{
		contribution("hospital-a", 100, 0.81, 0.35, 0.10, 0.12, 0.09),
		contribution("hospital-b", 120, 0.83, 0.32, 0.11, 0.10, 0.10),
		contribution("hospital-c", 90, 0.79, 0.37, 0.09, 0.11, 0.12),
	}
	outlier := contribution("mallory", 500, 0.05, 25.0, 9.0, -8.0, 7.5)

	cases := []struct {
		desc      string
		tolerance int
		input     []fl.Contribution
		excluded  []string
		count     int
		err       error
	}{
		{
			desc:      "excludes injected outlier with f=1",
			tolerance: 1,
			input:     append([]fl.Contribution{outlier}, honest...),
			excluded:  []string{"mallory"},
			count:     3,
		},
		{
			desc:      "keeps every update with f=0",
			tolerance: 0,
			input:     honest,
			excluded:  []string{},
			count:     3,
		},
		{
			desc:      "fails when m equals f+2",
			tolerance: 1,
			input:     honest,
			err:       pkgerrors.ErrInsufficientContributions,
		},
		{
			desc:      "fails on empty input",
			tolerance: 0,
			input:     nil,
			err:       pkgerrors.ErrInsufficientContributions,
		},
		{
			desc:      "counts only screened contributions towards m",
			tolerance: 1,
			input: append([]fl.Contribution{
				contribution("broken", 0, 0.8, 0.3, 0.1, 0.1, 0.1),
			}, honest...),
			err: pkgerrors.ErrInsufficientContributions,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			agg, err := fl.NewKrumAggregator(tc.tolerance, nil)
			require.NoError(t, err)

			res, err := agg.Aggregate(nil, tc.input)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err, fmt.Sprintf("%s: expected %v got %v", tc.desc, tc.err, err))

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.excluded, res.ExcludedParticipantIDs)
			assert.Equal(t, tc.count, res.ParticipantCount)
			assert.Equal(t, fl.StrategyKrum, res.Strategy)
		})
	}
}

func TestKrumOutlierDoesNotMoveAggregate(t *testing.T) {
	honest := []fl.Contribution{
		contribution("a", 10, 0.8, 0.3, 1, 1),
		contribution("b", 10, 0.8, 0.3, 1, 1),
		contribution("c", 10, 0.8, 0.3, 1, 1),
	}
	poisoned := append(honest, contribution("z", 1000, 0.1, 30, -50, 50))

	agg, err := fl.NewKrumAggregator(1, nil)
	require.NoError(t, err)

	res, err := agg.Aggregate([]float64{0, 0}, poisoned)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, res.Weights)
	assert.InDelta(t, 0.8, res.Accuracy, 1e-9)
	assert.Equal(t, int64(30), res.TotalSamples)
}

func TestNewKrumAggregatorRejectsNegativeTolerance(t *testing.T) {
	_, err := fl.NewKrumAggregator(-1, nil)
	assert.ErrorIs(t, err, fl.ErrInvalidTolerance)
}
