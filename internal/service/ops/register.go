package ops

import (
	"google.golang.org/grpc"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/server"
)

// Registrar ties the Ops service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Ops service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Ops service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	svc := NewOpsService(r.appCtx)
	s.RegisterService(Desc(svc), svc)
}

func Desc(svc *Service) *grpc.ServiceDesc {
	return server.Describe(ServiceName, []grpc.MethodDesc{
		server.Unary(ServiceName, "Status", svc.Status),
		server.Unary(ServiceName, "TestConnection", svc.TestConnection),
		server.Unary(ServiceName, "ResetBreaker", svc.ResetBreaker),
		server.Unary(ServiceName, "ForceFallback", svc.ForceFallback),
		server.Unary(ServiceName, "ClearFallbackData", svc.ClearFallbackData),
		server.Unary(ServiceName, "DemoInfo", svc.DemoInfo),
		server.Unary(ServiceName, "SetPreferences", svc.SetPreferences),
	})
}
