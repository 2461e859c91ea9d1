package server

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// SessionFromContext returns the bearer token of an incoming call, or "".
func SessionFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		if token, found := strings.CutPrefix(v, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
