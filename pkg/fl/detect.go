package fl

import (
	"fmt"
	"math"
)

const minStdDev = 1e-3

type DetectorConfig struct {
	StdDevMultiple float64 `env:"FEDLEDGER_DETECT_STDDEV_MULTIPLE" envDefault:"2"`
	MaxAccuracy    float64 `env:"FEDLEDGER_DETECT_MAX_ACCURACY"    envDefault:"0.99"`
	MaxLoss        float64 `env:"FEDLEDGER_DETECT_MAX_LOSS"        envDefault:"10"`
	PreFilter      bool    `env:"FEDLEDGER_DETECT_PREFILTER"       envDefault:"false"`

	// MinStdDev floors the cohort deviation so a near-uniform batch does not
	// turn rounding noise into huge z-scores.
	MinStdDev float64 `env:"FEDLEDGER_DETECT_MIN_STDDEV" envDefault:"0.05"`
}

type Suspicion struct {
	ContributionID string   `json:"contribution_id"`
	ParticipantID  string   `json:"participant_id"`
	Reasons        []string `json:"reasons"`
}

// Detect flags contributions whose reported metrics look out of line with the
// rest of the batch. Every contribution is compared against the statistics of
// the others, so one outlier can not widen the band it is measured against.
// The result is advisory.
func Detect(cfg DetectorConfig, contributions []Contribution) []Suspicion {
	var out []Suspicion
	for i, c := range contributions {
		var reasons []string
		acc, loss := c.Metrics.Accuracy, c.Metrics.Loss

		if cfg.MaxAccuracy > 0 && acc > cfg.MaxAccuracy {
			reasons = append(reasons, fmt.Sprintf("accuracy %.4f above plausible ceiling %.4f", acc, cfg.MaxAccuracy))
		}
		if cfg.MaxLoss > 0 && loss > cfg.MaxLoss {
			reasons = append(reasons, fmt.Sprintf("loss %.4f above plausible ceiling %.4f", loss, cfg.MaxLoss))
		}

		if len(contributions) >= 3 {
			floor := math.Max(cfg.MinStdDev, minStdDev)
			accMean, accSD := statsWithout(contributions, i, floor, func(m Metrics) float64 { return m.Accuracy })
			lossMean, lossSD := statsWithout(contributions, i, floor, func(m Metrics) float64 { return m.Loss })

			if cfg.StdDevMultiple > 0 {
				if z := math.Abs(acc-accMean) / accSD; z > cfg.StdDevMultiple {
					reasons = append(reasons, fmt.Sprintf("accuracy z-score %.2f exceeds %.2f", z, cfg.StdDevMultiple))
				}
				if z := math.Abs(loss-lossMean) / lossSD; z > cfg.StdDevMultiple {
					reasons = append(reasons, fmt.Sprintf("loss z-score %.2f exceeds %.2f", z, cfg.StdDevMultiple))
				}
			}
			if acc < accMean-accSD && loss > lossMean+lossSD {
				reasons = append(reasons, "low accuracy combined with high loss")
			}
		}

		if len(reasons) > 0 {
			out = append(out, Suspicion{
				ContributionID: c.ID,
				ParticipantID:  c.ParticipantID,
				Reasons:        reasons,
			})
		}
	}

	return out
}

func statsWithout(cs []Contribution, skip int, floor float64, field func(Metrics) float64) (mean, sd float64) {
	n := 0
	for i, c := range cs {
		if i == skip {
			continue
		}
		mean += field(c.Metrics)
		n++
	}
	mean /= float64(n)

	for i, c := range cs {
		if i == skip {
			continue
		}
		d := field(c.Metrics) - mean
		sd += d * d
	}
	sd = math.Sqrt(sd / float64(n))

	return mean, math.Max(sd, floor)
}
