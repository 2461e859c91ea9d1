// Package ops is the operator API: breaker inspection and control, the
// backend probe and what a demo-mode client needs to present itself.
package ops

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/fallback"
	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/service"
)

const ServiceName = "edublin.v1.Ops"

type ForceFallbackRequest struct {
	Reason string `json:"reason,omitempty"`
}

// DemoInfo is everything a client shows while the gateway serves demo data.
type DemoInfo struct {
	Active          bool                 `json:"active"`
	Credentials     fallback.Credentials `json:"credentials"`
	Stats           fallback.Stats       `json:"stats"`
	Tips            []fallback.Tip       `json:"tips"`
	SuccessMessages []string             `json:"success_messages"`
	Variations      []db.SignUpData      `json:"variations"`
	Preferences     gateway.Preferences  `json:"preferences"`
}

type PreferencesRequest struct {
	ConfigSkipped   *bool `json:"config_skipped,omitempty"`
	BannerDismissed *bool `json:"banner_dismissed,omitempty"`
}

type Service struct {
	appCtx *app.AppContext
	gw     *gateway.Gateway
}

func NewOpsService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx, gw: appCtx.Gateway}
}

func (s *Service) Status(_ context.Context, _ *emptypb.Empty) (*gateway.Status, error) {
	st := s.gw.Status()
	return &st, nil
}

func (s *Service) TestConnection(ctx context.Context, _ *emptypb.Empty) (*gateway.ConnectionStatus, error) {
	st := s.gw.TestConnection(ctx)
	s.appCtx.Logger.Debug("TestConnection result", "setup", st.IsSetup, "reason", st.Reason)
	return &st, nil
}

func (s *Service) ResetBreaker(ctx context.Context, _ *emptypb.Empty) (*gateway.Status, error) {
	s.gw.ResetBreaker(ctx)
	st := s.gw.Status()
	return &st, nil
}

func (s *Service) ForceFallback(ctx context.Context, req *ForceFallbackRequest) (*gateway.Status, error) {
	reason := req.Reason
	if reason == "" {
		reason = "forced by operator"
	}
	s.gw.ForceFallback(ctx, reason)
	st := s.gw.Status()
	return &st, nil
}

func (s *Service) ClearFallbackData(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.gw.ClearFallbackData(ctx); err != nil {
		return nil, service.Fail(ctx, s.appCtx, "clear_fallback_data", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Service) DemoInfo(_ context.Context, _ *emptypb.Empty) (*DemoInfo, error) {
	fb := s.gw.Fallback()
	return &DemoInfo{
		Active:          s.gw.InFallback(),
		Credentials:     fallback.DemoCredentials(),
		Stats:           fb.Stats(),
		Tips:            fb.Tips(),
		SuccessMessages: fb.SuccessMessages(),
		Variations:      fb.UserVariations(),
		Preferences:     s.gw.Preferences(),
	}, nil
}

// SetPreferences changes the flags that are set in req and leaves the
// others alone.
func (s *Service) SetPreferences(ctx context.Context, req *PreferencesRequest) (*gateway.Preferences, error) {
	if req.ConfigSkipped != nil {
		if err := s.gw.SkipConfig(*req.ConfigSkipped); err != nil {
			return nil, service.Fail(ctx, s.appCtx, "set_preferences", err)
		}
	}
	if req.BannerDismissed != nil {
		if err := s.gw.DismissBanner(*req.BannerDismissed); err != nil {
			return nil, service.Fail(ctx, s.appCtx, "set_preferences", err)
		}
	}
	p := s.gw.Preferences()
	return &p, nil
}
