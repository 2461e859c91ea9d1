package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/oggyb/edublin-connect/internal/backend"
	"github.com/oggyb/edublin-connect/internal/db"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/fallback"
)

// Operation names, used for errors, logs and metrics.
const (
	OpSignUp        = "sign_up"
	OpSignIn        = "sign_in"
	OpSignOut       = "sign_out"
	OpCurrentUser   = "current_user"
	OpFetchProfile  = "fetch_profile"
	OpCreateProfile = "create_profile"
	OpUpdateProfile = "update_profile"
	OpResetPassword = "reset_password"
	OpConfirmEmail  = "confirm_email"
	OpVerifyProfile = "verify_profile"
	OpWatch         = "watch_auth_state"
)

// AuthResult is what sign-up and sign-in return. Session is nil while the
// account waits for email confirmation.
type AuthResult struct {
	User    *db.User        `json:"user"`
	Session *db.AuthSession `json:"session,omitempty"`
}

type authStep struct {
	user *db.AuthUser
	sess *db.AuthSession
}

func (g *Gateway) SignUp(ctx context.Context, in db.SignUpData) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := g.checkSignUp(in); err != nil {
		return nil, err
	}

	if g.InFallback() {
		u := g.fb.UserFromSignUp(in)
		sess, err := g.startLocalSession(ctx, OpSignUp, u)
		if err != nil {
			return nil, err
		}
		g.log.Info("fallback sign-up", "user_id", u.ID)
		return &AuthResult{User: &u, Session: sess}, nil
	}

	step, err := call(ctx, g, OpSignUp, g.t.Auth, func(ctx context.Context, s backend.Store) (authStep, error) {
		u, sess, err := s.SignUp(ctx, in.Email, in.Password, in.Metadata())
		return authStep{u, sess}, err
	})
	if err != nil {
		return nil, err
	}

	profile := db.User{
		ID:        step.user.ID,
		Email:     step.user.Email,
		Name:      in.Name,
		Age:       in.Age,
		Phone:     in.Phone,
		Interests: []string{},
		Verified:  step.user.EmailConfirmedAt != nil,
	}
	created, err := call(ctx, g, OpCreateProfile, g.t.Profile, func(ctx context.Context, s backend.Store) (db.User, error) {
		row := profile
		return row, s.Users().Insert(ctx, &row)
	})
	if err != nil {
		// the account exists; a missing profile row is recreated on sign-in
		g.log.Warn("profile creation failed, sign-up kept", "user_id", step.user.ID, "err", err)
		created = g.fb.MinimalUser(step.user, in.Email)
	}

	if step.sess != nil {
		g.writeCache(ctx, step.sess.AccessToken, &created)
	}
	g.log.Info("signed up", "user_id", created.ID, "confirmed", step.sess != nil)
	return &AuthResult{User: &created, Session: step.sess}, nil
}

func (g *Gateway) checkSignUp(in db.SignUpData) error {
	err := g.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return svcErr.E(svcErr.KindValidation, OpSignUp, err)
	}
	switch fields[0].Field() {
	case "Email":
		return &svcErr.Error{Kind: svcErr.KindValidation, Op: OpSignUp, Key: svcErr.KeyInvalidEmail, Err: err}
	case "Password":
		return &svcErr.Error{Kind: svcErr.KindWeakPassword, Op: OpSignUp, Err: err}
	default:
		return &svcErr.Error{Kind: svcErr.KindValidation, Op: OpSignUp, Err: err}
	}
}

// SignIn authenticates and loads the profile. Concurrent identical
// attempts share one backend round trip.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, svcErr.New(svcErr.KindInvalidCredentials, OpSignIn)
	}
	if g.InFallback() {
		return g.fallbackSignIn(ctx, email, password)
	}

	key := OpSignIn + "\x00" + strings.ToLower(email) + "\x00" + password
	res, err := shared(ctx, g, key, func(ctx context.Context) (*AuthResult, error) {
		return g.signIn(ctx, email, password)
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: res.User.Clone(), Session: res.Session}, nil
}

func (g *Gateway) signIn(ctx context.Context, email, password string) (*AuthResult, error) {
	step, err := call(ctx, g, OpSignIn, g.t.Auth, func(ctx context.Context, s backend.Store) (authStep, error) {
		u, sess, err := s.SignIn(ctx, email, password)
		return authStep{u, sess}, err
	})
	if err != nil {
		return nil, err
	}

	u := g.loadProfile(ctx, OpFetchProfile, g.t.Profile, step.user, email, true)
	g.writeCache(ctx, step.sess.AccessToken, &u)
	g.log.Info("signed in", "user_id", u.ID)
	return &AuthResult{User: &u, Session: step.sess}, nil
}

// fallbackSignIn accepts the demo credentials, or the email of a local
// account created by a fallback sign-up. The demo email always needs the
// demo password.
func (g *Gateway) fallbackSignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	denied := &svcErr.Error{Kind: svcErr.KindInvalidCredentials, Op: OpSignIn, Key: svcErr.KeyDemoCredentials}

	var u db.User
	if strings.EqualFold(email, fallback.DemoEmail) {
		if password != fallback.DemoPassword {
			return nil, denied
		}
		u = g.fb.DemoUser()
	} else {
		stored, err := g.localAccount(email)
		if err != nil {
			return nil, svcErr.E(svcErr.KindUnknown, OpSignIn, err)
		}
		if stored == nil {
			return nil, denied
		}
		u = *stored
	}

	sess, err := g.startLocalSession(ctx, OpSignIn, u)
	if err != nil {
		return nil, err
	}
	g.log.Info("fallback sign-in", "user_id", u.ID)
	return &AuthResult{User: &u, Session: sess}, nil
}

// loadProfile fetches the profile row of au. A missing row is created when
// create is set. Any failure degrades to a minimal user built from au.
func (g *Gateway) loadProfile(ctx context.Context, op string, budget time.Duration, au *db.AuthUser, email string, create bool) db.User {
	u, err := call(ctx, g, op, budget, func(ctx context.Context, s backend.Store) (db.User, error) {
		return s.Users().First(ctx, byID(au.ID))
	})
	if err == nil {
		return u
	}

	if create && svcErr.Is(err, svcErr.KindNotFound) {
		row := g.fb.MinimalUser(au, email)
		if au.Metadata["name"] == "" {
			if local, _, ok := strings.Cut(row.Email, "@"); ok {
				row.Name = local
			}
		}
		created, cerr := call(ctx, g, OpCreateProfile, budget, func(ctx context.Context, s backend.Store) (db.User, error) {
			r := row
			return r, s.Users().Insert(ctx, &r)
		})
		if cerr == nil {
			return created
		}
		err = cerr
	}

	g.log.Warn("profile unavailable, using minimal user", "op", op, "user_id", au.ID, "err", err)
	return g.fb.MinimalUser(au, email)
}

// SignOut always succeeds: the cache entry and any local data are dropped
// even when the backend cannot be told.
func (g *Gateway) SignOut(ctx context.Context, session string) error {
	g.invalidateCache(ctx, session)

	if g.InFallback() {
		g.dropLocalSession(session)
		return nil
	}

	_, err := call(ctx, g, OpSignOut, g.t.SignOut, func(ctx context.Context, s backend.Store) (struct{}, error) {
		return struct{}{}, s.SignOut(ctx, session)
	})
	if err != nil {
		g.log.Warn("remote sign-out failed, local data cleared", "err", err)
		g.dropLocalSession(session)
	}
	return nil
}

// CurrentUser resolves the user of session. An unknown session and a
// failed lookup yield nil. While the breaker is open it fails with
// KindUnavailable without asking the backend.
func (g *Gateway) CurrentUser(ctx context.Context, session string) (*db.User, error) {
	if session == "" {
		return nil, nil
	}
	if u, ok := g.cache.Read(ctx, session); ok {
		return u, nil
	}

	if g.InFallback() {
		u, err := g.localUser(session)
		if err != nil {
			g.log.Warn("read local user failed", "err", err)
		}
		g.writeCache(ctx, session, u)
		g.m.Substituted(OpCurrentUser)
		return u, nil
	}

	u, err := shared(ctx, g, OpCurrentUser+"\x00"+session, func(ctx context.Context) (*db.User, error) {
		return g.currentUser(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	return u.Clone(), nil
}

func (g *Gateway) currentUser(ctx context.Context, session string) (*db.User, error) {
	au, err := call(ctx, g, OpCurrentUser, g.t.ProfileQuick, func(ctx context.Context, s backend.Store) (*db.AuthUser, error) {
		return s.GetUser(ctx, session)
	})
	switch {
	case svcErr.Is(err, svcErr.KindUnavailable):
		g.log.Debug("breaker blocked current user lookup")
		return nil, err
	case svcErr.Is(err, svcErr.KindFallback):
		// latched while this call was queued
		return g.localUser(session)
	case err != nil:
		g.log.Warn("current user lookup failed", "err", err)
		g.writeCache(ctx, session, nil)
		return nil, nil
	case au == nil:
		g.writeCache(ctx, session, nil)
		return nil, nil
	}

	u := g.loadProfile(ctx, OpFetchProfile, g.t.ProfileQuick, au, "", false)
	g.writeCache(ctx, session, &u)
	return &u, nil
}

// UpdateProfile writes profile fields and refreshes the cache entry of
// session with the result.
func (g *Gateway) UpdateProfile(ctx context.Context, session, userID string, upd db.ProfileUpdate) (*db.User, error) {
	g.invalidateCache(ctx, session)

	if g.InFallback() {
		u, err := g.localUser(session)
		if err != nil {
			return nil, svcErr.E(svcErr.KindUnknown, OpUpdateProfile, err)
		}
		if u == nil {
			return nil, &svcErr.Error{Kind: svcErr.KindNotFound, Op: OpUpdateProfile, Key: svcErr.KeyDemoUserNotFound}
		}
		upd.Apply(u)
		u.UpdatedAt = g.now()
		if err := g.saveLocalUser(session, *u); err != nil {
			return nil, svcErr.E(svcErr.KindUnknown, OpUpdateProfile, err)
		}
		g.writeCache(ctx, session, u)
		g.m.Substituted(OpUpdateProfile)
		return u, nil
	}

	u, err := call(ctx, g, OpUpdateProfile, g.t.Profile, func(ctx context.Context, s backend.Store) (db.User, error) {
		if err := s.Authorize(ctx, session, userID); err != nil {
			return db.User{}, err
		}
		changes := upd.Changes()
		changes["updated_at"] = g.now().UTC()
		n, err := s.Users().Update(ctx, byID(userID), changes)
		if err != nil {
			return db.User{}, err
		}
		if n == 0 {
			return db.User{}, svcErr.New(svcErr.KindNotFound, "")
		}
		return s.Users().First(ctx, byID(userID))
	})
	if err != nil {
		return nil, err
	}

	g.writeCache(ctx, session, &u)
	return &u, nil
}

// ResetPassword asks the backend to send a recovery email. Fallback mode
// pretends it was sent.
func (g *Gateway) ResetPassword(ctx context.Context, email string) error {
	if g.InFallback() {
		g.log.Info("fallback password reset", "email", email)
		g.m.Substituted(OpResetPassword)
		return nil
	}
	_, err := call(ctx, g, OpResetPassword, g.t.Auth, func(ctx context.Context, s backend.Store) (struct{}, error) {
		return struct{}{}, s.RequestPasswordReset(ctx, strings.TrimSpace(email))
	})
	return err
}

// ConfirmEmail redeems a confirmation token and marks the profile
// verified. Fallback mode always succeeds with the demo user.
func (g *Gateway) ConfirmEmail(ctx context.Context, token string) (*db.User, error) {
	if g.InFallback() {
		u := g.fb.DemoUser()
		g.m.Substituted(OpConfirmEmail)
		return &u, nil
	}

	au, err := call(ctx, g, OpConfirmEmail, g.t.Confirm, func(ctx context.Context, s backend.Store) (*db.AuthUser, error) {
		return s.ConfirmEmail(ctx, token)
	})
	if svcErr.Is(err, svcErr.KindNotFound) {
		return nil, &svcErr.Error{Kind: svcErr.KindNotFound, Op: OpConfirmEmail, Key: svcErr.KeySessionNotFound, Err: err}
	}
	if err != nil {
		return nil, err
	}

	_, err = call(ctx, g, OpVerifyProfile, g.t.SignOut, func(ctx context.Context, s backend.Store) (int64, error) {
		return s.Users().Update(ctx, byID(au.ID), map[string]any{"verified": true, "updated_at": g.now().UTC()})
	})
	if err != nil {
		g.log.Warn("profile verification update failed", "user_id", au.ID, "err", err)
	}

	u := g.fb.MinimalUser(au, "")
	u.Verified = true
	return &u, nil
}
