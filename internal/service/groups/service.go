package groups

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/backend"
	"github.com/oggyb/edublin-connect/internal/db"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/match"
	"github.com/oggyb/edublin-connect/internal/repository"
)

const (
	OpFindOrCreate      = "find_or_create_group"
	OpInviteLink        = "group_invite_link"
	OpUpdateMemberCount = "update_member_count"
	OpUserGroups        = "user_groups"
)

// MaxMembers is the WhatsApp group size limit.
const MaxMembers = 256

var monthsPtBR = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// Service manages the WhatsApp groups that gather students arriving in the
// same city in the same month.
type Service struct {
	appCtx *app.AppContext
	gw     *gateway.Gateway
}

func NewGroupsService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx, gw: appCtx.Gateway}
}

// FindOrCreate returns an active group for city and month with room left,
// creating one administered by adminID when there is none. When the
// backend cannot answer, a local group is returned instead.
func (s *Service) FindOrCreate(ctx context.Context, city, yearMonth, adminID string) (db.WhatsAppGroup, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return db.WhatsAppGroup{}, svcErr.Validation(OpFindOrCreate, "destination_city is required")
	}
	if _, _, ok := match.SplitYearMonth(yearMonth); !ok {
		return db.WhatsAppGroup{}, svcErr.Validation(OpFindOrCreate, "year_month must be YYYY-MM")
	}

	local := func() (db.WhatsAppGroup, error) {
		g := newGroup(city, yearMonth, adminID)
		g.ID = "demo-group-" + GroupSlug(city, yearMonth)
		g.CreatedAt = time.Now().UTC()
		g.UpdatedAt = g.CreatedAt
		return g, nil
	}

	return gateway.RunOr(ctx, s.gw, OpFindOrCreate, func(ctx context.Context, st backend.Store) (db.WhatsAppGroup, error) {
		q := openGroup(city, yearMonth).Lt("current_members", gorm.Expr("max_members"))
		existing, err := st.WhatsAppGroups().First(ctx, q)
		if err == nil {
			return existing, nil
		}
		if !svcErr.Is(err, svcErr.KindNotFound) {
			return db.WhatsAppGroup{}, err
		}

		g := newGroup(city, yearMonth, adminID)
		g.ID = uuid.NewString()
		if err := st.WhatsAppGroups().Insert(ctx, &g); err != nil {
			return db.WhatsAppGroup{}, err
		}
		s.appCtx.Logger.Info("whatsapp group created", "id", g.ID, "city", city, "year_month", yearMonth)
		return g, nil
	}, local)
}

// InviteLink returns the invite of the active group for city and month,
// or "" when there is none or it cannot be read.
func (s *Service) InviteLink(ctx context.Context, city, yearMonth string) string {
	if s.gw.InFallback() {
		return BuildInviteLink(city, yearMonth)
	}
	link, err := gateway.Run(ctx, s.gw, OpInviteLink, func(ctx context.Context, st backend.Store) (string, error) {
		g, err := st.WhatsAppGroups().First(ctx, openGroup(city, yearMonth))
		return g.InviteLink, err
	}, nil)
	if err != nil {
		if !svcErr.Is(err, svcErr.KindNotFound) {
			s.appCtx.Logger.Warn("invite link lookup failed", "city", city, "err", err)
		}
		return ""
	}
	return link
}

// UpdateMemberCount moves the member count of groupID by one, never below
// zero. Failures are logged and swallowed.
func (s *Service) UpdateMemberCount(ctx context.Context, groupID string, increment bool) {
	if s.gw.InFallback() || strings.HasPrefix(groupID, "demo-") {
		return
	}

	expr := gorm.Expr("CASE WHEN current_members > 0 THEN current_members - 1 ELSE 0 END")
	if increment {
		expr = gorm.Expr("current_members + 1")
	}
	n, err := gateway.Run(ctx, s.gw, OpUpdateMemberCount, func(ctx context.Context, st backend.Store) (int64, error) {
		return st.WhatsAppGroups().Update(ctx, repository.Where("id", groupID), map[string]any{"current_members": expr})
	}, nil)
	switch {
	case err != nil:
		s.appCtx.Logger.Warn("member count update failed", "group_id", groupID, "err", err)
	case n == 0:
		s.appCtx.Logger.Warn("member count update matched no group", "group_id", groupID)
	}
}

// UserGroups lists the active groups administered by userID, newest first.
// Failures yield an empty list.
func (s *Service) UserGroups(ctx context.Context, userID string) []db.WhatsAppGroup {
	if s.gw.InFallback() {
		return []db.WhatsAppGroup{}
	}
	groups, err := gateway.Run(ctx, s.gw, OpUserGroups, func(ctx context.Context, st backend.Store) ([]db.WhatsAppGroup, error) {
		return st.WhatsAppGroups().Select(ctx, repository.Where("admin_user_id", userID).Eq("active", true).Order("created_at", true))
	}, nil)
	if err != nil {
		s.appCtx.Logger.Warn("user groups lookup failed", "user_id", userID, "err", err)
		return []db.WhatsAppGroup{}
	}
	return groups
}

func openGroup(city, yearMonth string) repository.Query {
	return repository.Where("destination_city", city).Eq("year_month", yearMonth).Eq("active", true)
}

func newGroup(city, yearMonth, adminID string) db.WhatsAppGroup {
	when := FormatYearMonth(yearMonth)
	return db.WhatsAppGroup{
		Name:            fmt.Sprintf("%s - %s", city, when),
		Description:     fmt.Sprintf("Grupo para intercambistas chegando em %s em %s", city, when),
		DestinationCity: city,
		YearMonth:       yearMonth,
		InviteLink:      BuildInviteLink(city, yearMonth),
		AdminUserID:     adminID,
		MaxMembers:      MaxMembers,
		CurrentMembers:  1,
		Active:          true,
	}
}

// GroupSlug is the stable identifier of a city and month, e.g.
// "sao-paulo-202603".
func GroupSlug(city, yearMonth string) string {
	return slug.Make(city) + "-" + strings.ReplaceAll(yearMonth, "-", "")
}

// BuildInviteLink opens WhatsApp with a join message prefilled.
func BuildInviteLink(city, yearMonth string) string {
	msg := fmt.Sprintf("Olá! Quero participar do grupo de intercambistas para %s em %s. Vi pelo Edublin Connect!",
		city, FormatYearMonth(yearMonth))
	return "https://wa.me/?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
}

// FormatYearMonth renders "2026-03" as "março de 2026". Malformed input is
// returned unchanged.
func FormatYearMonth(yearMonth string) string {
	year, month, ok := match.SplitYearMonth(yearMonth)
	if !ok {
		return yearMonth
	}
	return monthsPtBR[month-1] + " de " + year
}
