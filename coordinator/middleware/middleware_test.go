package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/coordinator/middleware"
	"github.com/absmach/fedledger/coordinator/mocks"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// methodCounter records calls per method label.
type methodCounter struct {
	calls  map[string]float64
	method string
}

func (c *methodCounter) With(labelValues ...string) metrics.Counter {
	return &methodCounter{calls: c.calls, method: labelValues[len(labelValues)-1]}
}

func (c *methodCounter) Add(delta float64) {
	c.calls[c.method] += delta
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	counter := &methodCounter{calls: map[string]float64{}}
	latency := discard.NewHistogram()

	inner := new(mocks.MockService)
	svc := middleware.Tracing(noop.NewTracerProvider().Tracer("test"), inner)
	svc = middleware.Metrics(counter, latency, svc)
	svc = middleware.Logging(logger, svc)

	ctx := context.Background()
	round := fl.Round{ID: "round-1", ModelID: "model-1", Number: 1, Status: fl.RoundActive}

	cases := []struct {
		desc string
		call func() error
		log  string
		err  error
	}{
		{
			desc: "open round",
			call: func() error {
				inner.On("OpenRound", mock.Anything, "model-1").Return(round, nil).Once()
				got, err := svc.OpenRound(ctx, "model-1")
				assert.Equal(t, round, got)

				return err
			},
			log: "Open round completed successfully",
		},
		{
			desc: "duplicate contribution",
			call: func() error {
				sub := coordinator.Submission{RoundID: "round-1", ParticipantID: "wallet-a"}
				inner.On("SubmitContribution", mock.Anything, sub).Return(fl.Contribution{}, pkgerrors.ErrDuplicate).Once()
				_, err := svc.SubmitContribution(ctx, sub)

				return err
			},
			log: "Submit contribution failed",
			err: pkgerrors.ErrDuplicate,
		},
		{
			desc: "delete model with open round",
			call: func() error {
				inner.On("DeleteModel", mock.Anything, "model-1").Return(pkgerrors.ErrConflict).Once()

				return svc.DeleteModel(ctx, "model-1")
			},
			log: "Delete model failed",
			err: pkgerrors.ErrConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			buf.Reset()
			err := tc.call()
			assert.ErrorIs(t, err, tc.err)
			assert.Contains(t, buf.String(), tc.log)
		})
	}

	require.Equal(t, map[string]float64{
		"open-round":          1,
		"submit-contribution": 1,
		"delete-model":        1,
	}, counter.calls)
	inner.AssertExpectations(t)
}
