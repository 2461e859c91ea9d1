package auth

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/server"
	"github.com/oggyb/edublin-connect/internal/service"
)

// ServiceName is the gRPC service the handlers below are registered under.
const ServiceName = "edublin.v1.Auth"

type SignUpRequest struct {
	db.SignUpData
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthReply carries the user and, once confirmed, the bearer session.
type AuthReply struct {
	User    *db.User        `json:"user"`
	Session *db.AuthSession `json:"session,omitempty"`
}

type UserReply struct {
	User *db.User `json:"user"`
}

type UpdateProfileRequest struct {
	UserID string `json:"user_id"`
	db.ProfileUpdate
}

type ResetPasswordRequest struct {
	Email string `json:"email"`
}

type ConfirmEmailRequest struct {
	Token string `json:"token"`
}

// AuthState is one frame of WatchAuthState. A nil user means signed out.
type AuthState struct {
	SignedIn bool     `json:"signed_in"`
	User     *db.User `json:"user,omitempty"`
}

// Service implements the Auth gRPC API on top of the gateway. The session
// is always taken from the bearer token of the call.
type Service struct {
	appCtx *app.AppContext
	gw     *gateway.Gateway
}

// NewAuthService creates the Auth service from the shared AppContext.
func NewAuthService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx, gw: appCtx.Gateway}
}

func (s *Service) SignUp(ctx context.Context, req *SignUpRequest) (*AuthReply, error) {
	s.appCtx.Logger.Debug("SignUp called", "email", req.Email)
	res, err := s.gw.SignUp(ctx, req.SignUpData)
	if err != nil {
		return nil, service.Fail(ctx, s.appCtx, gateway.OpSignUp, err)
	}
	return &AuthReply{User: res.User, Session: res.Session}, nil
}

func (s *Service) SignIn(ctx context.Context, req *SignInRequest) (*AuthReply, error) {
	s.appCtx.Logger.Debug("SignIn called", "email", req.Email)
	res, err := s.gw.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, service.Fail(ctx, s.appCtx, gateway.OpSignIn, err)
	}
	return &AuthReply{User: res.User, Session: res.Session}, nil
}

// SignOut never fails, even without a session.
func (s *Service) SignOut(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	_ = s.gw.SignOut(ctx, server.SessionFromContext(ctx))
	return &emptypb.Empty{}, nil
}

// CurrentUser answers with a nil user for unknown sessions and failed
// lookups. An open breaker is reported as Unavailable.
func (s *Service) CurrentUser(ctx context.Context, _ *emptypb.Empty) (*UserReply, error) {
	u, err := s.gw.CurrentUser(ctx, server.SessionFromContext(ctx))
	if err != nil {
		return nil, service.Fail(ctx, s.appCtx, gateway.OpCurrentUser, err)
	}
	return &UserReply{User: u}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*UserReply, error) {
	caller, err := service.ResolveCaller(ctx, s.appCtx, req.UserID)
	if err != nil {
		return nil, service.Fail(ctx, s.appCtx, gateway.OpUpdateProfile, err)
	}
	u, err := s.gw.UpdateProfile(ctx, caller.Session, caller.UserID, req.ProfileUpdate)
	if err != nil {
		return nil, service.Fail(ctx, s.appCtx, gateway.OpUpdateProfile, err)
	}
	return &UserReply{User: u}, nil
}

func (s *Service) ResetPassword(ctx context.Context, req *ResetPasswordRequest) (*emptypb.Empty, error) {
	if err := s.gw.ResetPassword(ctx, req.Email); err != nil {
		return nil, service.Fail(ctx, s.appCtx, gateway.OpResetPassword, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Service) ConfirmEmail(ctx context.Context, req *ConfirmEmailRequest) (*UserReply, error) {
	u, err := s.gw.ConfirmEmail(ctx, req.Token)
	if err != nil {
		return nil, service.Fail(ctx, s.appCtx, gateway.OpConfirmEmail, err)
	}
	return &UserReply{User: u}, nil
}

// WatchAuthState streams the user of the calling session: once right away,
// then on every change. The stream ends when the session is signed out
// or unknown, or when the client goes away.
func (s *Service) WatchAuthState(ctx context.Context, _ *emptypb.Empty, send func(*AuthState) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	states := make(chan *db.User, 1)
	stop := s.gw.OnAuthStateChange(ctx, server.SessionFromContext(ctx), func(u *db.User) {
		select {
		case states <- u:
		case <-ctx.Done():
		}
	})
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-states:
			if err := send(&AuthState{SignedIn: u != nil, User: u}); err != nil {
				return err
			}
			if u == nil {
				return nil
			}
		}
	}
}
