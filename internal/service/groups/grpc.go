package groups

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/service"
)

// ServiceName is the gRPC service of the groups API.
const ServiceName = "edublin.v1.Groups"

type FindOrCreateRequest struct {
	DestinationCity string `json:"destination_city"`
	YearMonth       string `json:"year_month"`
	AdminUserID     string `json:"admin_user_id,omitempty"`
}

type GroupReply struct {
	Group db.WhatsAppGroup `json:"group"`
}

type InviteLinkRequest struct {
	DestinationCity string `json:"destination_city"`
	YearMonth       string `json:"year_month"`
}

// InviteLinkReply has an empty link when no group exists yet.
type InviteLinkReply struct {
	InviteLink string `json:"invite_link"`
}

type MemberCountRequest struct {
	GroupID   string `json:"group_id"`
	Increment bool   `json:"increment"`
}

type UserGroupsRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type GroupsReply struct {
	Groups []db.WhatsAppGroup `json:"groups"`
}

// Handler adapts Service to the wire.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) FindOrCreate(ctx context.Context, req *FindOrCreateRequest) (*GroupReply, error) {
	caller, err := service.ResolveCaller(ctx, h.svc.appCtx, req.AdminUserID)
	if err != nil {
		return nil, service.Fail(ctx, h.svc.appCtx, OpFindOrCreate, err)
	}
	g, err := h.svc.FindOrCreate(ctx, req.DestinationCity, req.YearMonth, caller.UserID)
	if err != nil {
		return nil, service.Fail(ctx, h.svc.appCtx, OpFindOrCreate, err)
	}
	return &GroupReply{Group: g}, nil
}

func (h *Handler) InviteLink(ctx context.Context, req *InviteLinkRequest) (*InviteLinkReply, error) {
	return &InviteLinkReply{InviteLink: h.svc.InviteLink(ctx, req.DestinationCity, req.YearMonth)}, nil
}

func (h *Handler) UpdateMemberCount(ctx context.Context, req *MemberCountRequest) (*emptypb.Empty, error) {
	h.svc.UpdateMemberCount(ctx, req.GroupID, req.Increment)
	return &emptypb.Empty{}, nil
}

func (h *Handler) UserGroups(ctx context.Context, req *UserGroupsRequest) (*GroupsReply, error) {
	caller, err := service.ResolveCaller(ctx, h.svc.appCtx, req.UserID)
	if err != nil {
		return nil, service.Fail(ctx, h.svc.appCtx, OpUserGroups, err)
	}
	return &GroupsReply{Groups: h.svc.UserGroups(ctx, caller.UserID)}, nil
}
