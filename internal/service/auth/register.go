package auth

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/server"
)

// Registrar ties the Auth service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Auth service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Auth service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	svc := NewAuthService(r.appCtx)
	s.RegisterService(Desc(svc), svc)
}

// Desc describes the Auth service backed by svc.
func Desc(svc *Service) *grpc.ServiceDesc {
	return server.Describe(ServiceName,
		[]grpc.MethodDesc{
			server.Unary(ServiceName, "SignUp", svc.SignUp),
			server.Unary(ServiceName, "SignIn", svc.SignIn),
			server.Unary(ServiceName, "SignOut", svc.SignOut),
			server.Unary(ServiceName, "CurrentUser", svc.CurrentUser),
			server.Unary(ServiceName, "UpdateProfile", svc.UpdateProfile),
			server.Unary(ServiceName, "ResetPassword", svc.ResetPassword),
			server.Unary(ServiceName, "ConfirmEmail", svc.ConfirmEmail),
		},
		server.ServerStream[emptypb.Empty, AuthState]("WatchAuthState", svc.WatchAuthState),
	)
}
