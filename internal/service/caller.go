// Package service holds what the gRPC services share: resolving who is
// calling and in which language errors should be reported.
package service

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/oggyb/edublin-connect/internal/app"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/server"
)

// Caller is the authenticated side of a request.
type Caller struct {
	Session string
	UserID  string
}

// ResolveCaller identifies the caller from its bearer token. An explicit
// userID wins over the session's user, which keeps demo identities usable
// without a session.
func ResolveCaller(ctx context.Context, appCtx *app.AppContext, userID string) (Caller, error) {
	c := Caller{Session: server.SessionFromContext(ctx), UserID: userID}
	if c.UserID != "" {
		return c, nil
	}
	if c.Session == "" {
		return c, svcErr.Unauthenticated("missing bearer token")
	}
	u, err := appCtx.Gateway.CurrentUser(ctx, c.Session)
	if err != nil {
		return c, err
	}
	if u == nil {
		return c, svcErr.Unauthenticated("session is not signed in")
	}
	c.UserID = u.ID
	return c, nil
}

// Locale picks the error language: the accept-language header of the call,
// else the configured one.
func Locale(ctx context.Context, appCtx *app.AppContext) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("accept-language"); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return appCtx.Locale()
}

// Fail logs err and converts it into a localized gRPC status.
func Fail(ctx context.Context, appCtx *app.AppContext, op string, err error) error {
	appCtx.Logger.Debug("request failed", "op", op, "kind", svcErr.KindOf(err), "err", err)
	return svcErr.MapLocalized(err, Locale(ctx, appCtx))
}
