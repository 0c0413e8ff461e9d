package fl

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
)

const (
	StrategyFedAvg = "fedavg"
	StrategyKrum   = "krum"
)

// Aggregator folds the accepted contributions of a round into the prior
// global weights. Implementations are pure and safe for concurrent use.
type Aggregator interface {
	Aggregate(global []float64, contributions []Contribution) (AggregationResult, error)
	Strategy() string
}

type Config struct {
	Strategy  string `env:"FEDLEDGER_AGGREGATION_STRATEGY" envDefault:"fedavg"`
	Tolerance int    `env:"FEDLEDGER_KRUM_TOLERANCE"       envDefault:"1"`
}

func NewAggregator(cfg Config, logger *slog.Logger) (Aggregator, error) {
	switch strings.ToLower(cfg.Strategy) {
	case StrategyFedAvg, "":
		return NewFedAvgAggregator(logger), nil
	case StrategyKrum:
		return NewKrumAggregator(cfg.Tolerance, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, cfg.Strategy)
	}
}

type FedAvgAggregator struct {
	logger *slog.Logger
}

func NewFedAvgAggregator(logger *slog.Logger) *FedAvgAggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &FedAvgAggregator{logger: logger}
}

func (f *FedAvgAggregator) Strategy() string {
	return StrategyFedAvg
}

func (f *FedAvgAggregator) Aggregate(global []float64, contributions []Contribution) (AggregationResult, error) {
	usable, excluded := screen(global, contributions, f.logger)

	return fedAvg(global, usable, excluded, StrategyFedAvg)
}

// screen orders contributions by participant and drops the ones that can
// not take part in a weighted mean. The returned slice is a sorted copy.
func screen(global []float64, contributions []Contribution, logger *slog.Logger) (usable []Contribution, excluded []string) {
	sorted := slices.Clone(contributions)
	slices.SortStableFunc(sorted, compareParticipant)

	dim := len(global)
	if dim == 0 {
		dim = modalLength(sorted)
	}

	for _, c := range sorted {
		reason := ""
		switch {
		case c.Metrics.SamplesTrained <= 0:
			reason = "non-positive sample count"
		case len(c.Delta) != dim:
			reason = fmt.Sprintf("weight vector length %d, expected %d", len(c.Delta), dim)
		case !finite(c.Delta...):
			reason = "non-finite weight value"
		case !finite(c.Metrics.Accuracy, c.Metrics.Loss):
			reason = "non-finite metrics"
		}
		if reason != "" {
			logger.Warn("excluding contribution from aggregation",
				slog.String("round_id", c.RoundID),
				slog.String("participant_id", c.ParticipantID),
				slog.String("reason", reason),
			)
			excluded = append(excluded, c.ParticipantID)

			continue
		}
		usable = append(usable, c)
	}

	return usable, excluded
}

func fedAvg(global []float64, usable []Contribution, excluded []string, strategy string) (AggregationResult, error) {
	if len(usable) == 0 {
		return AggregationResult{}, fmt.Errorf("%w: no usable contributions", pkgerrors.ErrInsufficientContributions)
	}

	dim := len(usable[0].Delta)
	sum := make([]float64, dim)
	var (
		total        int64
		accSum       float64
		lossSum      float64
		participants = make([]string, 0, len(usable))
	)
	for _, c := range usable {
		n := c.Metrics.SamplesTrained
		if total > math.MaxInt64-n {
			return AggregationResult{}, ErrOverflow
		}
		total += n

		w := float64(n)
		for i, d := range c.Delta {
			sum[i] += w * d
		}
		accSum += w * c.Metrics.Accuracy
		lossSum += w * c.Metrics.Loss
		participants = append(participants, c.ParticipantID)
	}

	norm := float64(total)
	weights := make([]float64, dim)
	for i := range weights {
		if i < len(global) {
			weights[i] = global[i]
		}
		weights[i] += sum[i] / norm
	}

	slices.Sort(excluded)
	if excluded == nil {
		excluded = []string{}
	}

	return AggregationResult{
		Weights:                weights,
		Accuracy:               accSum / norm,
		Loss:                   lossSum / norm,
		ParticipantCount:       len(participants),
		TotalSamples:           total,
		ExcludedParticipantIDs: excluded,
		Strategy:               strategy,
	}, nil
}

func compareParticipant(a, b Contribution) int {
	if c := strings.Compare(a.ParticipantID, b.ParticipantID); c != 0 {
		return c
	}

	return strings.Compare(a.ID, b.ID)
}

// modalLength picks the most common delta length among contributions with a
// positive sample count. Ties go to the length seen first.
func modalLength(contributions []Contribution) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, c := range contributions {
		if c.Metrics.SamplesTrained <= 0 {
			continue
		}
		l := len(c.Delta)
		counts[l]++
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}

	return best
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
