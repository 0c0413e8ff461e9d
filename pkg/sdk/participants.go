package sdk

import (
	"net/http"

	"github.com/absmach/fedledger/pkg/fl"
)

const participantsEndpoint = "/participants"

func (sdk *fedSDK) RegisterParticipant(walletID, displayName string) (fl.Participant, error) {
	req := map[string]string{
		"wallet_id":    walletID,
		"display_name": displayName,
	}

	var p fl.Participant
	if err := sdk.post(participantsEndpoint, req, http.StatusOK, &p); err != nil {
		return fl.Participant{}, err
	}

	return p, nil
}

func (sdk *fedSDK) GetParticipant(walletID string) (fl.Participant, error) {
	var p fl.Participant
	if err := sdk.get(participantsEndpoint+"/"+walletID, &p); err != nil {
		return fl.Participant{}, err
	}

	return p, nil
}

func (sdk *fedSDK) ListParticipants(offset, limit uint64) (fl.ParticipantPage, error) {
	var page fl.ParticipantPage
	if err := sdk.get(participantsEndpoint+pageQuery(offset, limit), &page); err != nil {
		return fl.ParticipantPage{}, err
	}

	return page, nil
}

func (sdk *fedSDK) DeactivateParticipant(walletID string) (fl.Participant, error) {
	var p fl.Participant
	if err := sdk.post(participantsEndpoint+"/"+walletID+"/deactivate", nil, http.StatusOK, &p); err != nil {
		return fl.Participant{}, err
	}

	return p, nil
}

func (sdk *fedSDK) ReportByzantine(walletID, roundID, reason string) (fl.Participant, error) {
	req := map[string]string{
		"round_id": roundID,
		"reason":   reason,
	}

	var p fl.Participant
	if err := sdk.post(participantsEndpoint+"/"+walletID+"/byzantine", req, http.StatusOK, &p); err != nil {
		return fl.Participant{}, err
	}

	return p, nil
}

func (sdk *fedSDK) ListParticipantContributions(walletID string, offset, limit uint64) (fl.ContributionPage, error) {
	var page fl.ContributionPage
	if err := sdk.get(participantsEndpoint+"/"+walletID+"/contributions"+pageQuery(offset, limit), &page); err != nil {
		return fl.ContributionPage{}, err
	}

	return page, nil
}

func (sdk *fedSDK) Stats() (fl.Stats, error) {
	var stats fl.Stats
	if err := sdk.get("/stats", &stats); err != nil {
		return fl.Stats{}, err
	}

	return stats, nil
}
