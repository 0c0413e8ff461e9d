package sdk

import (
	"net/http"

	"github.com/absmach/fedledger/pkg/fl"
)

const modelsEndpoint = "/models"

func (sdk *fedSDK) CreateModel(disease, kind string, weights []float64) (fl.Model, error) {
	req := struct {
		Disease string    `json:"disease"`
		Kind    string    `json:"kind,omitempty"`
		Weights []float64 `json:"weights,omitempty"`
	}{disease, kind, weights}

	var m fl.Model
	if err := sdk.post(modelsEndpoint, req, http.StatusCreated, &m); err != nil {
		return fl.Model{}, err
	}

	return m, nil
}

func (sdk *fedSDK) GetModel(id string) (fl.Model, error) {
	var m fl.Model
	if err := sdk.get(modelsEndpoint+"/"+id, &m); err != nil {
		return fl.Model{}, err
	}

	return m, nil
}

func (sdk *fedSDK) ListModels(offset, limit uint64) (fl.ModelPage, error) {
	var page fl.ModelPage
	if err := sdk.get(modelsEndpoint+pageQuery(offset, limit), &page); err != nil {
		return fl.ModelPage{}, err
	}

	return page, nil
}

func (sdk *fedSDK) PauseModel(id string) (fl.Model, error) {
	var m fl.Model
	if err := sdk.post(modelsEndpoint+"/"+id+"/pause", nil, http.StatusOK, &m); err != nil {
		return fl.Model{}, err
	}

	return m, nil
}

func (sdk *fedSDK) ResumeModel(id string) (fl.Model, error) {
	var m fl.Model
	if err := sdk.post(modelsEndpoint+"/"+id+"/resume", nil, http.StatusOK, &m); err != nil {
		return fl.Model{}, err
	}

	return m, nil
}

func (sdk *fedSDK) DeleteModel(id string) error {
	url := sdk.coordinatorURL + modelsEndpoint + "/" + id

	if _, err := sdk.processRequest(http.MethodDelete, url, CTJSON, nil, http.StatusNoContent); err != nil {
		return err
	}

	return nil
}
