package fl

import (
	"fmt"
	"log/slog"
	"slices"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
)

// KrumAggregator runs multi-Krum: with m usable contributions and tolerance f
// it keeps the m-f updates closest to their m-f-2 nearest neighbours and
// averages only those.
type KrumAggregator struct {
	tolerance int
	logger    *slog.Logger
}

func NewKrumAggregator(tolerance int, logger *slog.Logger) (*KrumAggregator, error) {
	if tolerance < 0 {
		return nil, ErrInvalidTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &KrumAggregator{tolerance: tolerance, logger: logger}, nil
}

func (k *KrumAggregator) Strategy() string {
	return StrategyKrum
}

func (k *KrumAggregator) Aggregate(global []float64, contributions []Contribution) (AggregationResult, error) {
	usable, excluded := screen(global, contributions, k.logger)

	m, f := len(usable), k.tolerance
	if m <= f+2 {
		return AggregationResult{}, fmt.Errorf("%w: krum needs more than %d usable contributions, got %d",
			pkgerrors.ErrInsufficientContributions, f+2, m)
	}

	scores := krumScores(usable, m-f-2)

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] < scores[b]:
			return -1
		case scores[a] > scores[b]:
			return 1
		default:
			return 0
		}
	})

	selected := make([]Contribution, 0, m-f)
	for rank, idx := range order {
		c := usable[idx]
		if rank < m-f {
			selected = append(selected, c)

			continue
		}
		k.logger.Warn("krum rejected contribution",
			slog.String("round_id", c.RoundID),
			slog.String("participant_id", c.ParticipantID),
			slog.Float64("score", scores[idx]),
		)
		excluded = append(excluded, c.ParticipantID)
	}

	// fedAvg expects participant order for a stable floating point sum.
	slices.SortStableFunc(selected, compareParticipant)

	return fedAvg(global, selected, excluded, StrategyKrum)
}

// krumScores returns, for every contribution, the sum of squared distances
// to its nearest neighbours.
func krumScores(cs []Contribution, neighbours int) []float64 {
	m := len(cs)
	dist := make([][]float64, m)
	for i := range dist {
		dist[i] = make([]float64, m)
	}
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			d := squaredDistance(cs[i].Delta, cs[j].Delta)
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	scores := make([]float64, m)
	row := make([]float64, 0, m-1)
	for i := 0; i < m; i++ {
		row = row[:0]
		for j := 0; j < m; j++ {
			if i != j {
				row = append(row, dist[i][j])
			}
		}
		slices.Sort(row)
		for _, d := range row[:neighbours] {
			scores[i] += d
		}
	}

	return scores
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}
