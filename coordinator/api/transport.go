package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/api"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxContributionSize bounds a single submission body.
const maxContributionSize = 1024 * 1024 * 32

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/models", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			createModelEndpoint(svc),
			decodeCreateModelReq,
			api.EncodeResponse,
			opts...,
		), "create-model").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listModelsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-models").ServeHTTP)
		r.Route("/{modelID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getModelEndpoint(svc),
				decodeEntityReq("modelID"),
				api.EncodeResponse,
				opts...,
			), "get-model").ServeHTTP)
			r.Delete("/", otelhttp.NewHandler(kithttp.NewServer(
				deleteModelEndpoint(svc),
				decodeEntityReq("modelID"),
				api.EncodeResponse,
				opts...,
			), "delete-model").ServeHTTP)
			r.Post("/pause", otelhttp.NewHandler(kithttp.NewServer(
				pauseModelEndpoint(svc),
				decodeEntityReq("modelID"),
				api.EncodeResponse,
				opts...,
			), "pause-model").ServeHTTP)
			r.Post("/resume", otelhttp.NewHandler(kithttp.NewServer(
				resumeModelEndpoint(svc),
				decodeEntityReq("modelID"),
				api.EncodeResponse,
				opts...,
			), "resume-model").ServeHTTP)
			r.Post("/rounds", otelhttp.NewHandler(kithttp.NewServer(
				openRoundEndpoint(svc),
				decodeEntityReq("modelID"),
				api.EncodeResponse,
				opts...,
			), "open-round").ServeHTTP)
			r.Get("/rounds", otelhttp.NewHandler(kithttp.NewServer(
				listRoundsEndpoint(svc),
				decodeListRoundsReq,
				api.EncodeResponse,
				opts...,
			), "list-rounds").ServeHTTP)
			r.Get("/rounds/active", otelhttp.NewHandler(kithttp.NewServer(
				getActiveRoundEndpoint(svc),
				decodeEntityReq("modelID"),
				api.EncodeResponse,
				opts...,
			), "get-active-round").ServeHTTP)
		})
	})

	mux.Route("/rounds/{roundID}", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			getRoundEndpoint(svc),
			decodeEntityReq("roundID"),
			api.EncodeResponse,
			opts...,
		), "get-round").ServeHTTP)
		r.Post("/contributions", otelhttp.NewHandler(kithttp.NewServer(
			submitContributionEndpoint(svc),
			decodeContributionReq,
			api.EncodeResponse,
			opts...,
		), "submit-contribution").ServeHTTP)
		r.Post("/contributions/cbor", otelhttp.NewHandler(kithttp.NewServer(
			submitContributionEndpoint(svc),
			decodeCBORContributionReq,
			api.EncodeResponse,
			opts...,
		), "submit-contribution-cbor").ServeHTTP)
		r.Get("/contributions", otelhttp.NewHandler(kithttp.NewServer(
			listContributionsEndpoint(svc),
			decodeEntityReq("roundID"),
			api.EncodeResponse,
			opts...,
		), "list-contributions").ServeHTTP)
		r.Post("/complete", otelhttp.NewHandler(kithttp.NewServer(
			completeRoundEndpoint(svc),
			decodeEntityReq("roundID"),
			api.EncodeResponse,
			opts...,
		), "complete-round").ServeHTTP)
		r.Put("/min-participants", otelhttp.NewHandler(kithttp.NewServer(
			setMinParticipantsEndpoint(svc),
			decodeMinParticipantsReq,
			api.EncodeResponse,
			opts...,
		), "set-round-min-participants").ServeHTTP)
	})

	mux.Route("/participants", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			registerParticipantEndpoint(svc),
			decodeRegisterParticipantReq,
			api.EncodeResponse,
			opts...,
		), "register-participant").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listParticipantsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-participants").ServeHTTP)
		r.Route("/{walletID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getParticipantEndpoint(svc),
				decodeEntityReq("walletID"),
				api.EncodeResponse,
				opts...,
			), "get-participant").ServeHTTP)
			r.Post("/deactivate", otelhttp.NewHandler(kithttp.NewServer(
				deactivateParticipantEndpoint(svc),
				decodeEntityReq("walletID"),
				api.EncodeResponse,
				opts...,
			), "deactivate-participant").ServeHTTP)
			r.Post("/byzantine", otelhttp.NewHandler(kithttp.NewServer(
				reportByzantineEndpoint(svc),
				decodeReportByzantineReq,
				api.EncodeResponse,
				opts...,
			), "report-byzantine").ServeHTTP)
			r.Get("/contributions", otelhttp.NewHandler(kithttp.NewServer(
				listParticipantContributionsEndpoint(svc),
				decodeListParticipantContributionsReq,
				api.EncodeResponse,
				opts...,
			), "list-participant-contributions").ServeHTTP)
		})
	})

	mux.Get("/contributions/{contributionID}", otelhttp.NewHandler(kithttp.NewServer(
		getContributionEndpoint(svc),
		decodeEntityReq("contributionID"),
		api.EncodeResponse,
		opts...,
	), "get-contribution").ServeHTTP)

	mux.Get("/stats", otelhttp.NewHandler(kithttp.NewServer(
		statsEndpoint(svc),
		kithttp.NopRequestDecoder,
		api.EncodeResponse,
		opts...,
	), "stats").ServeHTTP)

	mux.Get("/health", supermq.Health("coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeListRoundsReq(ctx context.Context, r *http.Request) (any, error) {
	page, err := decodeListEntityReq(ctx, r)
	if err != nil {
		return nil, err
	}
	list, _ := page.(listEntityReq)

	return listRoundsReq{
		modelID: chi.URLParam(r, "modelID"),
		offset:  list.offset,
		limit:   list.limit,
	}, nil
}

func decodeListParticipantContributionsReq(ctx context.Context, r *http.Request) (any, error) {
	page, err := decodeListEntityReq(ctx, r)
	if err != nil {
		return nil, err
	}
	list, _ := page.(listEntityReq)

	return listParticipantContributionsReq{
		walletID: chi.URLParam(r, "walletID"),
		offset:   list.offset,
		limit:    list.limit,
	}, nil
}

func decodeCreateModelReq(_ context.Context, r *http.Request) (any, error) {
	var req createModelReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeContributionReq(_ context.Context, r *http.Request) (any, error) {
	var req submitContributionReq
	if err := decodeJSON(r, &req.Submission); err != nil {
		return nil, err
	}
	req.RoundID = chi.URLParam(r, "roundID")

	return req, nil
}

func decodeCBORContributionReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.CBORContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxContributionSize))
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	var req submitContributionReq
	if err := cbor.Unmarshal(body, &req.Submission); err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}
	req.RoundID = chi.URLParam(r, "roundID")

	return req, nil
}

func decodeMinParticipantsReq(_ context.Context, r *http.Request) (any, error) {
	var req minParticipantsReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	req.roundID = chi.URLParam(r, "roundID")

	return req, nil
}

func decodeRegisterParticipantReq(_ context.Context, r *http.Request) (any, error) {
	var req registerParticipantReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeReportByzantineReq(_ context.Context, r *http.Request) (any, error) {
	var req reportByzantineReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	req.walletID = chi.URLParam(r, "walletID")

	return req, nil
}

func decodeJSON(r *http.Request, v any) error {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	if err := json.NewDecoder(io.LimitReader(r.Body, maxContributionSize)).Decode(v); err != nil {
		return errors.Join(err, apiutil.ErrValidation)
	}

	return nil
}
