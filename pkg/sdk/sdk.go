package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/zk"
)

const (
	CTJSON string = "application/json"
	CTCBOR string = "application/cbor"
)

// Contribution is a participant's local update for a round.
type Contribution struct {
	ParticipantID string     `json:"participant_id" cbor:"participant_id"`
	Delta         []float64  `json:"weight_delta"   cbor:"weight_delta"`
	Metrics       fl.Metrics `json:"metrics"        cbor:"metrics"`
	Proof         zk.Proof   `json:"proof"          cbor:"proof"`
}

type SDK interface {
	// CreateModel registers a new global model for a disease.
	//
	// example:
	//  model, _ := sdk.CreateModel("diabetes", "logistic-regression", []float64{0, 0, 0})
	//  fmt.Println(model.ID)
	CreateModel(disease, kind string, weights []float64) (fl.Model, error)

	// GetModel gets a model by id.
	GetModel(id string) (fl.Model, error)

	// ListModels lists models.
	//
	// example:
	//  page, _ := sdk.ListModels(0, 10)
	//  fmt.Println(page.Total)
	ListModels(offset, limit uint64) (fl.ModelPage, error)

	PauseModel(id string) (fl.Model, error)
	ResumeModel(id string) (fl.Model, error)

	// DeleteModel soft-deletes a model with no open round.
	DeleteModel(id string) error

	// OpenRound opens the next training round for a model.
	//
	// example:
	//  round, _ := sdk.OpenRound("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040")
	//  fmt.Println(round.Number, round.Deadline)
	OpenRound(modelID string) (fl.Round, error)

	GetRound(id string) (fl.Round, error)
	GetActiveRound(modelID string) (fl.Round, error)
	ListRounds(modelID string, offset, limit uint64) (fl.RoundPage, error)
	SetRoundMinParticipants(roundID string, n int) (fl.Round, error)

	// SubmitContribution posts a contribution as JSON.
	//
	// example:
	//  c, _ := sdk.SubmitContribution(roundID, sdk.Contribution{
	//    ParticipantID: "0xabc",
	//    Delta:         delta,
	//    Metrics:       fl.Metrics{Accuracy: 0.8, Loss: 0.3, SamplesTrained: 120},
	//    Proof:         proof,
	//  })
	SubmitContribution(roundID string, c Contribution) (fl.Contribution, error)

	// SubmitContributionCBOR posts the same payload CBOR encoded.
	SubmitContributionCBOR(roundID string, c Contribution) (fl.Contribution, error)

	ListContributions(roundID string) ([]fl.Contribution, error)
	GetContribution(id string) (fl.Contribution, error)

	// CompleteRound aggregates the round. Calling it again returns the stored result.
	CompleteRound(roundID string) (fl.AggregationResult, error)

	RegisterParticipant(walletID, displayName string) (fl.Participant, error)
	GetParticipant(walletID string) (fl.Participant, error)
	ListParticipants(offset, limit uint64) (fl.ParticipantPage, error)
	DeactivateParticipant(walletID string) (fl.Participant, error)
	ReportByzantine(walletID, roundID, reason string) (fl.Participant, error)

	// ListParticipantContributions lists a participant's contributions,
	// newest first.
	ListParticipantContributions(walletID string, offset, limit uint64) (fl.ContributionPage, error)

	// Stats returns federation totals.
	//
	// example:
	//  stats, _ := sdk.Stats()
	//  fmt.Println(stats.Models, stats.AverageAccuracy)
	Stats() (fl.Stats, error)
}

type fedSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &fedSDK{
		coordinatorURL: strings.TrimSuffix(cfg.CoordinatorURL, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

// StatusError carries a non-expected response from the coordinator.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected response code: %d", e.Code)
	}

	return fmt.Sprintf("unexpected response code: %d: %s", e.Code, e.Message)
}

func (sdk *fedSDK) processRequest(method, reqURL, contentType string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", contentType)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var res struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &res)

		return []byte{}, &StatusError{Code: resp.StatusCode, Message: res.Error}
	}

	return body, nil
}

func (sdk *fedSDK) get(path string, v any) error {
	body, err := sdk.processRequest(http.MethodGet, sdk.coordinatorURL+path, CTJSON, nil, http.StatusOK)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, v)
}

func (sdk *fedSDK) post(path string, payload any, expected int, v any) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return err
		}
	}

	body, err := sdk.processRequest(http.MethodPost, sdk.coordinatorURL+path, CTJSON, data, expected)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, v)
}

func pageQuery(offset, limit uint64) string {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	if len(queries) == 0 {
		return ""
	}

	return "?" + strings.Join(queries, "&")
}
