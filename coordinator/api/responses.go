package api

import (
	"net/http"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*modelResponse)(nil)
	_ supermq.Response = (*listModelsResponse)(nil)
	_ supermq.Response = (*roundResponse)(nil)
	_ supermq.Response = (*listRoundsResponse)(nil)
	_ supermq.Response = (*contributionResponse)(nil)
	_ supermq.Response = (*listContributionsResponse)(nil)
	_ supermq.Response = (*aggregationResponse)(nil)
	_ supermq.Response = (*participantResponse)(nil)
	_ supermq.Response = (*listParticipantsResponse)(nil)
)

type modelResponse struct {
	fl.Model
	created bool
	deleted bool
}

func (res modelResponse) Code() int {
	switch {
	case res.created:
		return http.StatusCreated
	case res.deleted:
		return http.StatusNoContent
	default:
		return http.StatusOK
	}
}

func (res modelResponse) Headers() map[string]string {
	if res.created {
		return map[string]string{
			"Location": "/models/" + res.ID,
		}
	}

	return map[string]string{}
}

func (res modelResponse) Empty() bool {
	return res.deleted
}

type listModelsResponse struct {
	fl.ModelPage
}

func (res listModelsResponse) Code() int {
	return http.StatusOK
}

func (res listModelsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res listModelsResponse) Empty() bool {
	return false
}

type roundResponse struct {
	fl.Round
	created bool
}

func (res roundResponse) Code() int {
	if res.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (res roundResponse) Headers() map[string]string {
	if res.created {
		return map[string]string{
			"Location": "/rounds/" + res.ID,
		}
	}

	return map[string]string{}
}

func (res roundResponse) Empty() bool {
	return false
}

type listRoundsResponse struct {
	fl.RoundPage
}

func (res listRoundsResponse) Code() int {
	return http.StatusOK
}

func (res listRoundsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res listRoundsResponse) Empty() bool {
	return false
}

type contributionResponse struct {
	fl.Contribution
}

func (res contributionResponse) Code() int {
	return http.StatusCreated
}

func (res contributionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res contributionResponse) Empty() bool {
	return false
}

type listContributionsResponse struct {
	Contributions []fl.Contribution `json:"contributions"`
}

func (res listContributionsResponse) Code() int {
	return http.StatusOK
}

func (res listContributionsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res listContributionsResponse) Empty() bool {
	return false
}

type aggregationResponse struct {
	fl.AggregationResult
}

func (res aggregationResponse) Code() int {
	return http.StatusOK
}

func (res aggregationResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res aggregationResponse) Empty() bool {
	return false
}

type participantResponse struct {
	fl.Participant
}

func (res participantResponse) Code() int {
	return http.StatusOK
}

func (res participantResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res participantResponse) Empty() bool {
	return false
}

type listParticipantsResponse struct {
	fl.ParticipantPage
}

func (res listParticipantsResponse) Code() int {
	return http.StatusOK
}

func (res listParticipantsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res listParticipantsResponse) Empty() bool {
	return false
}

type viewContributionResponse struct {
	fl.Contribution
}

func (res viewContributionResponse) Code() int {
	return http.StatusOK
}

func (res viewContributionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res viewContributionResponse) Empty() bool {
	return false
}

type contributionPageResponse struct {
	fl.ContributionPage
}

func (res contributionPageResponse) Code() int {
	return http.StatusOK
}

func (res contributionPageResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res contributionPageResponse) Empty() bool {
	return false
}

type statsResponse struct {
	fl.Stats
}

func (res statsResponse) Code() int {
	return http.StatusOK
}

func (res statsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (res statsResponse) Empty() bool {
	return false
}
