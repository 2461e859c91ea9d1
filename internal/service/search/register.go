package search

import (
	"google.golang.org/grpc"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/server"
)

// Registrar ties the Search service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Search service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Search service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	h := NewHandler(NewSearchService(r.appCtx))
	s.RegisterService(Desc(h), h)
}

// Desc describes the Search service backed by h.
func Desc(h *Handler) *grpc.ServiceDesc {
	return server.Describe(ServiceName, []grpc.MethodDesc{
		server.Unary(ServiceName, "SaveCriteria", h.SaveCriteria),
		server.Unary(ServiceName, "FindMatches", h.FindMatches),
		server.Unary(ServiceName, "SearchUsers", h.SearchUsers),
		server.Unary(ServiceName, "History", h.History),
		server.Unary(ServiceName, "DeleteCriteria", h.DeleteCriteria),
		server.Unary(ServiceName, "PopularDestinations", h.PopularDestinations),
		server.Unary(ServiceName, "RequestContact", h.RequestContact),
		server.Unary(ServiceName, "ContactRequests", h.ContactRequests),
	})
}
