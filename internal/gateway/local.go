package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/edublin-connect/internal/db"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/localstore"
	"github.com/oggyb/edublin-connect/internal/metrics"
)

// Fallback sessions never reach the backend.
const (
	localTokenPrefix = "demo-token-"
	localSessionTTL  = time.Hour
)

// IsLocalSession reports whether token was issued in fallback mode.
func IsLocalSession(token string) bool {
	return strings.HasPrefix(token, localTokenPrefix)
}

// startLocalSession issues a fallback token for u and remembers u under
// both the token and the email.
func (g *Gateway) startLocalSession(ctx context.Context, op string, u db.User) (*db.AuthSession, error) {
	sess := &db.AuthSession{
		AccessToken: localTokenPrefix + uuid.NewString(),
		UserID:      u.ID,
		ExpiresAt:   g.now().Add(localSessionTTL),
	}
	if err := g.saveLocalUser(sess.AccessToken, u); err != nil {
		return nil, svcErr.E(svcErr.KindUnknown, op, err)
	}
	g.writeCache(ctx, sess.AccessToken, &u)
	g.m.Call(op, metrics.OutcomeFallback, 0)
	g.m.Substituted(op)
	return sess, nil
}

func (g *Gateway) saveLocalUser(session string, u db.User) error {
	if err := g.local.SetJSON(localstore.CurrentUserKey(session), u); err != nil {
		return err
	}
	return g.local.SetJSON(localstore.AccountKey(u.Email), u)
}

// localUser returns the fallback user of session, or nil.
func (g *Gateway) localUser(session string) (*db.User, error) {
	var u db.User
	ok, err := g.local.GetJSON(localstore.CurrentUserKey(session), &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (g *Gateway) localAccount(email string) (*db.User, error) {
	var u db.User
	ok, err := g.local.GetJSON(localstore.AccountKey(email), &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

// dropLocalSession forgets the fallback user of session. Failures are
// logged only; sign-out must always succeed locally.
func (g *Gateway) dropLocalSession(session string) {
	u, err := g.localUser(session)
	if err != nil {
		g.log.Warn("read local user failed", "err", err)
	}
	if err := g.local.Remove(localstore.CurrentUserKey(session)); err != nil {
		g.log.Warn("remove local session failed", "err", err)
	}
	if u != nil {
		if err := g.local.Remove(localstore.AccountKey(u.Email)); err != nil {
			g.log.Warn("remove local account failed", "err", err)
		}
	}
}

// Preferences are the demo-mode choices remembered across restarts.
type Preferences struct {
	ConfigSkipped   bool `json:"config_skipped"`
	BannerDismissed bool `json:"banner_dismissed"`
}

func (g *Gateway) Preferences() Preferences {
	return Preferences{
		ConfigSkipped:   g.local.Flag(localstore.KeyConfigSkipped),
		BannerDismissed: g.local.Flag(localstore.KeyBannerDismissed),
	}
}

// SkipConfig records that the operator chose demo mode over configuring
// a backend.
func (g *Gateway) SkipConfig(skip bool) error {
	return g.local.SetFlag(localstore.KeyConfigSkipped, skip)
}

// DismissBanner hides the demo-mode banner.
func (g *Gateway) DismissBanner(dismissed bool) error {
	return g.local.SetFlag(localstore.KeyBannerDismissed, dismissed)
}


