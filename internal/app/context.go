package app

import (
	"log/slog"

	"github.com/oggyb/edublin-connect/internal/config"
	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/metrics"
)

// AppContext holds shared dependencies handed to every service.
type AppContext struct {
	Config  *config.Config
	Gateway *gateway.Gateway
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// New creates a new AppContext. A nil logger falls back to the gateway's.
func New(cfg *config.Config, gw *gateway.Gateway, m *metrics.Metrics, logger *slog.Logger) *AppContext {
	if logger == nil {
		logger = gw.Logger()
	}
	return &AppContext{
		Config:  cfg,
		Gateway: gw,
		Metrics: m,
		Logger:  logger,
	}
}

// Locale is the message locale for user-facing errors.
func (a *AppContext) Locale() string {
	if a.Config == nil || a.Config.App.Locale == "" {
		return "pt-BR"
	}
	return a.Config.App.Locale
}
