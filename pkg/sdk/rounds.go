package sdk

import (
	"encoding/json"
	"net/http"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/fxamacker/cbor/v2"
)

const roundsEndpoint = "/rounds"

func (sdk *fedSDK) OpenRound(modelID string) (fl.Round, error) {
	var r fl.Round
	if err := sdk.post(modelsEndpoint+"/"+modelID+"/rounds", nil, http.StatusCreated, &r); err != nil {
		return fl.Round{}, err
	}

	return r, nil
}

func (sdk *fedSDK) GetRound(id string) (fl.Round, error) {
	var r fl.Round
	if err := sdk.get(roundsEndpoint+"/"+id, &r); err != nil {
		return fl.Round{}, err
	}

	return r, nil
}

func (sdk *fedSDK) GetActiveRound(modelID string) (fl.Round, error) {
	var r fl.Round
	if err := sdk.get(modelsEndpoint+"/"+modelID+"/rounds/active", &r); err != nil {
		return fl.Round{}, err
	}

	return r, nil
}

func (sdk *fedSDK) ListRounds(modelID string, offset, limit uint64) (fl.RoundPage, error) {
	var page fl.RoundPage
	if err := sdk.get(modelsEndpoint+"/"+modelID+"/rounds"+pageQuery(offset, limit), &page); err != nil {
		return fl.RoundPage{}, err
	}

	return page, nil
}

func (sdk *fedSDK) SetRoundMinParticipants(roundID string, n int) (fl.Round, error) {
	data, err := json.Marshal(map[string]int{"min_participants": n})
	if err != nil {
		return fl.Round{}, err
	}
	url := sdk.coordinatorURL + roundsEndpoint + "/" + roundID + "/min-participants"

	body, err := sdk.processRequest(http.MethodPut, url, CTJSON, data, http.StatusOK)
	if err != nil {
		return fl.Round{}, err
	}

	var r fl.Round
	if err := json.Unmarshal(body, &r); err != nil {
		return fl.Round{}, err
	}

	return r, nil
}

func (sdk *fedSDK) SubmitContribution(roundID string, c Contribution) (fl.Contribution, error) {
	var res fl.Contribution
	if err := sdk.post(roundsEndpoint+"/"+roundID+"/contributions", c, http.StatusCreated, &res); err != nil {
		return fl.Contribution{}, err
	}

	return res, nil
}

func (sdk *fedSDK) SubmitContributionCBOR(roundID string, c Contribution) (fl.Contribution, error) {
	data, err := cbor.Marshal(c)
	if err != nil {
		return fl.Contribution{}, err
	}
	url := sdk.coordinatorURL + roundsEndpoint + "/" + roundID + "/contributions/cbor"

	body, err := sdk.processRequest(http.MethodPost, url, CTCBOR, data, http.StatusCreated)
	if err != nil {
		return fl.Contribution{}, err
	}

	var res fl.Contribution
	if err := json.Unmarshal(body, &res); err != nil {
		return fl.Contribution{}, err
	}

	return res, nil
}

func (sdk *fedSDK) ListContributions(roundID string) ([]fl.Contribution, error) {
	var res struct {
		Contributions []fl.Contribution `json:"contributions"`
	}
	if err := sdk.get(roundsEndpoint+"/"+roundID+"/contributions", &res); err != nil {
		return nil, err
	}

	return res.Contributions, nil
}

func (sdk *fedSDK) CompleteRound(roundID string) (fl.AggregationResult, error) {
	var res fl.AggregationResult
	if err := sdk.post(roundsEndpoint+"/"+roundID+"/complete", nil, http.StatusOK, &res); err != nil {
		return fl.AggregationResult{}, err
	}

	return res, nil
}

func (sdk *fedSDK) GetContribution(id string) (fl.Contribution, error) {
	var c fl.Contribution
	if err := sdk.get("/contributions/"+id, &c); err != nil {
		return fl.Contribution{}, err
	}

	return c, nil
}
