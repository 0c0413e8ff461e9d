package api

import (
	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/api"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type createModelReq struct {
	Disease string    `json:"disease"`
	Kind    string    `json:"kind"`
	Weights []float64 `json:"weights"`
}

func (req *createModelReq) validate() error {
	if req.Disease == "" {
		return apiutil.ErrMissingName
	}

	return nil
}

type entityReq struct {
	id string
}

func (req *entityReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (req *listEntityReq) validate() error {
	if req.limit > api.MaxLimitSize || req.limit < 1 {
		return apiutil.ErrLimitSize
	}

	return nil
}

type listRoundsReq struct {
	modelID       string
	offset, limit uint64
}

func (req *listRoundsReq) validate() error {
	if req.modelID == "" {
		return apiutil.ErrMissingID
	}
	if req.limit > api.MaxLimitSize || req.limit < 1 {
		return apiutil.ErrLimitSize
	}

	return nil
}

type listParticipantContributionsReq struct {
	walletID      string
	offset, limit uint64
}

func (req *listParticipantContributionsReq) validate() error {
	if req.walletID == "" {
		return pkgerrors.ErrEmptyKey
	}
	if req.limit > api.MaxLimitSize || req.limit < 1 {
		return apiutil.ErrLimitSize
	}

	return nil
}

type submitContributionReq struct {
	coordinator.Submission
}

func (req *submitContributionReq) validate() error {
	if req.RoundID == "" {
		return apiutil.ErrMissingID
	}
	if req.ParticipantID == "" {
		return pkgerrors.ErrEmptyKey
	}

	return nil
}

type minParticipantsReq struct {
	roundID         string
	MinParticipants int `json:"min_participants"`
}

func (req *minParticipantsReq) validate() error {
	if req.roundID == "" {
		return apiutil.ErrMissingID
	}
	if req.MinParticipants < 1 {
		return pkgerrors.ErrInvalidArgument
	}

	return nil
}

type registerParticipantReq struct {
	WalletID    string `json:"wallet_id"`
	DisplayName string `json:"display_name"`
}

func (req *registerParticipantReq) validate() error {
	if req.WalletID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type reportByzantineReq struct {
	walletID string
	RoundID  string `json:"round_id"`
	Reason   string `json:"reason"`
}

func (req *reportByzantineReq) validate() error {
	if req.walletID == "" || req.RoundID == "" {
		return apiutil.ErrMissingID
	}
	if req.Reason == "" {
		return pkgerrors.ErrInvalidArgument
	}

	return nil
}
