package groups

import (
	"google.golang.org/grpc"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/server"
)

// Registrar ties the Groups service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Groups service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Groups service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	h := NewHandler(NewGroupsService(r.appCtx))
	s.RegisterService(Desc(h), h)
}

// Desc describes the Groups service backed by h.
func Desc(h *Handler) *grpc.ServiceDesc {
	return server.Describe(ServiceName, []grpc.MethodDesc{
		server.Unary(ServiceName, "FindOrCreate", h.FindOrCreate),
		server.Unary(ServiceName, "InviteLink", h.InviteLink),
		server.Unary(ServiceName, "UpdateMemberCount", h.UpdateMemberCount),
		server.Unary(ServiceName, "UserGroups", h.UserGroups),
	})
}
