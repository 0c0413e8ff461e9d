package api

import (
	"context"
	"errors"

	"github.com/absmach/fedledger/coordinator"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func createModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(createModelReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		model, err := svc.CreateModel(ctx, req.Disease, req.Kind, req.Weights)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{Model: model, created: true}, nil
	}
}

func getModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		model, err := svc.GetModel(ctx, req.id)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{Model: model}, nil
	}
}

func listModelsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listModelsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listModelsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListModels(ctx, req.offset, req.limit)
		if err != nil {
			return listModelsResponse{}, err
		}

		return listModelsResponse{ModelPage: page}, nil
	}
}

func pauseModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return modelTransition(svc.PauseModel)
}

func resumeModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return modelTransition(svc.ResumeModel)
}

func modelTransition(apply func(context.Context, string) (fl.Model, error)) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		model, err := apply(ctx, req.id)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{Model: model}, nil
	}
}

func deleteModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.DeleteModel(ctx, req.id); err != nil {
			return modelResponse{}, err
		}

		return modelResponse{deleted: true}, nil
	}
}

func openRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		round, err := svc.OpenRound(ctx, req.id)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{Round: round, created: true}, nil
	}
}

func getRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return roundLookup(svc.GetRound)
}

func getActiveRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return roundLookup(svc.GetActiveRound)
}

func roundLookup(lookup func(context.Context, string) (fl.Round, error)) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		round, err := lookup(ctx, req.id)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{Round: round}, nil
	}
}

func listRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listRoundsReq)
		if !ok {
			return listRoundsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRoundsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListRounds(ctx, req.modelID, req.offset, req.limit)
		if err != nil {
			return listRoundsResponse{}, err
		}

		return listRoundsResponse{RoundPage: page}, nil
	}
}

func setMinParticipantsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(minParticipantsReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		round, err := svc.SetRoundMinParticipants(ctx, req.roundID, req.MinParticipants)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{Round: round}, nil
	}
}

func submitContributionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(submitContributionReq)
		if !ok {
			return contributionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return contributionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		c, err := svc.SubmitContribution(ctx, req.Submission)
		if err != nil {
			return contributionResponse{}, err
		}

		return contributionResponse{Contribution: c}, nil
	}
}

func listContributionsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return listContributionsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listContributionsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		cs, err := svc.ListContributions(ctx, req.id)
		if err != nil {
			return listContributionsResponse{}, err
		}

		return listContributionsResponse{Contributions: cs}, nil
	}
}

func completeRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return aggregationResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return aggregationResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.CompleteRound(ctx, req.id)
		if err != nil {
			return aggregationResponse{}, err
		}

		return aggregationResponse{AggregationResult: res}, nil
	}
}

func registerParticipantEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(registerParticipantReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.RegisterParticipant(ctx, req.WalletID, req.DisplayName)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{Participant: p}, nil
	}
}

func getParticipantEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return participantLookup(svc.GetParticipant)
}

func deactivateParticipantEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return participantLookup(svc.DeactivateParticipant)
}

func participantLookup(apply func(context.Context, string) (fl.Participant, error)) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := apply(ctx, req.id)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{Participant: p}, nil
	}
}

func listParticipantsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listParticipantsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listParticipantsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListParticipants(ctx, req.offset, req.limit)
		if err != nil {
			return listParticipantsResponse{}, err
		}

		return listParticipantsResponse{ParticipantPage: page}, nil
	}
}

func reportByzantineEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(reportByzantineReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.ReportByzantine(ctx, req.RoundID, req.walletID, req.Reason)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{Participant: p}, nil
	}
}

func getContributionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return viewContributionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return viewContributionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		c, err := svc.GetContribution(ctx, req.id)
		if err != nil {
			return viewContributionResponse{}, err
		}

		return viewContributionResponse{Contribution: c}, nil
	}
}

func listParticipantContributionsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listParticipantContributionsReq)
		if !ok {
			return contributionPageResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return contributionPageResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListContributionsByParticipant(ctx, req.walletID, req.offset, req.limit)
		if err != nil {
			return contributionPageResponse{}, err
		}

		return contributionPageResponse{ContributionPage: page}, nil
	}
}

func statsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return statsResponse{}, err
		}

		return statsResponse{Stats: stats}, nil
	}
}
