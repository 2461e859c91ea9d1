package search

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/match"
	"github.com/oggyb/edublin-connect/internal/service"
)

// ServiceName is the gRPC service of the search API.
const ServiceName = "edublin.v1.Search"

type SaveCriteriaRequest struct {
	UserID string `json:"user_id,omitempty"`
	match.Criteria
}

type CriteriaReply struct {
	Criteria db.SearchCriteria `json:"criteria"`
}

type FindMatchesRequest struct {
	CriteriaID string `json:"criteria_id"`
	UserID     string `json:"user_id,omitempty"`
}

type MatchesReply struct {
	Matches []db.Match `json:"matches"`
}

type SearchUsersRequest struct {
	match.Criteria
}

type ProfilesReply struct {
	Profiles []db.Profile `json:"profiles"`
}

type HistoryRequest struct {
	UserID    string `json:"user_id,omitempty"`
	PageToken string `json:"page_token,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type HistoryReply struct {
	Criteria      []db.SearchCriteria `json:"criteria"`
	NextPageToken string              `json:"next_page_token,omitempty"`
}

type DeleteCriteriaRequest struct {
	ID string `json:"id"`
}

type DestinationsReply struct {
	Destinations []db.Destination `json:"destinations"`
}

type RequestContactRequest struct {
	RequesterID string `json:"requester_id,omitempty"`
	TargetID    string `json:"target_id"`
	CriteriaID  string `json:"criteria_id"`
	Message     string `json:"message"`
}

type ContactReply struct {
	Request db.ContactRequest `json:"request"`
}

type ContactRequestsRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type ContactRequestsReply struct {
	Requests []db.ContactRequest `json:"requests"`
}

// Handler adapts Service to the wire. User IDs left empty are taken from
// the calling session.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) fail(ctx context.Context, op string, err error) error {
	return service.Fail(ctx, h.svc.appCtx, op, err)
}

func (h *Handler) SaveCriteria(ctx context.Context, req *SaveCriteriaRequest) (*CriteriaReply, error) {
	caller, err := service.ResolveCaller(ctx, h.svc.appCtx, req.UserID)
	if err != nil {
		return nil, h.fail(ctx, OpSaveCriteria, err)
	}
	c, err := h.svc.SaveCriteria(ctx, caller.Session, caller.UserID, req.Criteria)
	if err != nil {
		return nil, h.fail(ctx, OpSaveCriteria, err)
	}
	return &CriteriaReply{Criteria: c}, nil
}

func (h *Handler) FindMatches(ctx context.Context, req *FindMatchesRequest) (*MatchesReply, error) {
	caller, err := service.ResolveCaller(ctx, h.svc.appCtx, req.UserID)
	if err != nil {
		return nil, h.fail(ctx, OpFindMatches, err)
	}
	ms, err := h.svc.FindMatches(ctx, req.CriteriaID, caller.UserID)
	if err != nil {
		return nil, h.fail(ctx, OpFindMatches, err)
	}
	return &MatchesReply{Matches: ms}, nil
}

// SearchUsers is open to anonymous callers.
func (h *Handler) SearchUsers(ctx context.Context, req *SearchUsersRequest) (*ProfilesReply, error) {
	ps, err := h.svc.SearchUsers(ctx, req.Criteria)
	if err != nil {
		return nil, h.fail(ctx, OpSearchUsers, err)
	}
	return &ProfilesReply{Profiles: ps}, nil
}

func (h *Handler) History(ctx context.Context, req *HistoryRequest) (*HistoryReply, error) {
	caller, err := service.ResolveCaller(ctx, h.svc.appCtx, req.UserID)
	if err != nil {
		return nil, h.fail(ctx, OpHistory, err)
	}
	cs, next, err := h.svc.History(ctx, caller.UserID, req.PageToken, req.Limit)
	if err != nil {
		return nil, h.fail(ctx, OpHistory, err)
	}
	return &HistoryReply{Criteria: cs, NextPageToken: next}, nil
}

func (h *Handler) DeleteCriteria(ctx context.Context, req *DeleteCriteriaRequest) (*emptypb.Empty, error) {
	caller, err := service.ResolveCaller(ctx, h.svc.appCtx, "")
	if err != nil && !h.svc.gw.InFallback() {
		return nil, h.fail(ctx, OpDeleteCriteria, err)
	}
	if err := h.svc.DeleteCriteria(ctx, caller.Session, req.ID); err != nil {
		return nil, h.fail(ctx, OpDeleteCriteria, err)
	}
	return &emptypb.Empty{}, nil
}

func (h *Handler) PopularDestinations(ctx context.Context, _ *emptypb.Empty) (*DestinationsReply, error) {
	ds, err := h.svc.PopularDestinations(ctx)
	if err != nil {
		return nil, h.fail(ctx, OpPopularDestinations, err)
	}
	return &DestinationsReply{Destinations: ds}, nil
}

func (h *Handler) RequestContact(ctx context.Context, req *RequestContactRequest) (*ContactReply, error) {
	caller, err := service.ResolveCaller(ctx, h.svc.appCtx, req.RequesterID)
	if err != nil {
		return nil, h.fail(ctx, OpRequestContact, err)
	}
	cr, err := h.svc.RequestContact(ctx, caller.Session, caller.UserID, req.TargetID, req.CriteriaID, req.Message)
	if err != nil {
		return nil, h.fail(ctx, OpRequestContact, err)
	}
	return &ContactReply{Request: cr}, nil
}

func (h *Handler) ContactRequests(ctx context.Context, req *ContactRequestsRequest) (*ContactRequestsReply, error) {
	caller, err := service.ResolveCaller(ctx, h.svc.appCtx, req.UserID)
	if err != nil {
		return nil, h.fail(ctx, OpContactRequests, err)
	}
	rs, err := h.svc.ContactRequests(ctx, caller.UserID)
	if err != nil {
		return nil, h.fail(ctx, OpContactRequests, err)
	}
	return &ContactRequestsReply{Requests: rs}, nil
}
