package search

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/oggyb/edublin-connect/internal/app"
	"github.com/oggyb/edublin-connect/internal/backend"
	"github.com/oggyb/edublin-connect/internal/db"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/fallback"
	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/match"
	"github.com/oggyb/edublin-connect/internal/repository"
)

// Operation names.
const (
	OpSaveCriteria        = "save_search_criteria"
	OpFindMatches         = "find_matches"
	OpSearchUsers         = "search_users"
	OpHistory             = "search_history"
	OpDeleteCriteria      = "delete_search_criteria"
	OpPopularDestinations = "popular_destinations"
	OpRequestContact      = "request_contact"
	OpContactRequests     = "contact_requests"
)

const (
	matchLimit        = 20
	fallbackMatches   = 15
	fallbackProfiles  = 20
	fallbackResults   = 12
	historyPageSize   = 10
	popularLimit      = 10
	historyMaxPerPage = 50
)

// Service finds travel companions: saved searches, scored matches and
// contact requests. Writes surface backend failures; reads fall back to
// generated data when the backend cannot answer.
type Service struct {
	appCtx *app.AppContext
	gw     *gateway.Gateway
	fb     *fallback.Provider
}

func NewSearchService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		gw:     appCtx.Gateway,
		fb:     appCtx.Gateway.Fallback(),
	}
}

// local reports whether userID is answered from fallback data regardless
// of backend health.
func (s *Service) local(userID string) bool {
	return s.gw.InFallback() || fallback.IsDemoUser(userID)
}

func validateCriteria(op string, c match.Criteria) error {
	switch {
	case strings.TrimSpace(c.DestinationCountry) == "":
		return svcErr.Validation(op, "destination_country is required")
	case strings.TrimSpace(c.DestinationCity) == "":
		return svcErr.Validation(op, "destination_city is required")
	}
	if _, _, ok := match.SplitYearMonth(c.YearMonth); !ok {
		return svcErr.Validation(op, "year_month must be YYYY-MM")
	}
	return nil
}

// SaveCriteria stores a search for userID. A permission denial from the
// backend is not fatal: the search is kept locally and the flow goes on.
func (s *Service) SaveCriteria(ctx context.Context, session, userID string, c match.Criteria) (db.SearchCriteria, error) {
	if err := validateCriteria(OpSaveCriteria, c); err != nil {
		return db.SearchCriteria{}, err
	}
	if s.local(userID) {
		return s.fb.SavedCriteria(userID, c), nil
	}

	row, err := gateway.Run(ctx, s.gw, OpSaveCriteria, func(ctx context.Context, st backend.Store) (db.SearchCriteria, error) {
		if err := st.Authorize(ctx, session, userID); err != nil {
			return db.SearchCriteria{}, err
		}
		row := db.SearchCriteria{
			ID:                 uuid.NewString(),
			UserID:             userID,
			OriginCity:         c.OriginCity,
			DestinationCountry: c.DestinationCountry,
			DestinationCity:    c.DestinationCity,
			School:             c.School,
			Airline:            c.Airline,
			YearMonth:          c.YearMonth,
		}
		return row, st.SearchCriteria().Insert(ctx, &row)
	}, nil)

	switch svcErr.KindOf(err) {
	case svcErr.KindUnauthenticated:
		return db.SearchCriteria{}, &svcErr.Error{Kind: svcErr.KindUnauthenticated, Op: OpSaveCriteria, Key: svcErr.KeyLoginToSaveSearch, Err: err}
	case svcErr.KindPermissionDenied:
		s.appCtx.Logger.Warn("save search denied, keeping a local copy",
			"user_id", userID, "msg", svcErr.Localize(&svcErr.Error{Key: svcErr.KeySaveSearchDenied}, s.appCtx.Locale()))
		return s.fb.SavedCriteria(userID, c), nil
	}
	if err != nil {
		return db.SearchCriteria{}, err
	}
	s.appCtx.Logger.Debug("search criteria saved", "id", row.ID, "user_id", userID)
	return row, nil
}

// FindMatches lists other users whose saved searches share the destination
// of criteriaID, best compatibility first.
func (s *Service) FindMatches(ctx context.Context, criteriaID, userID string) ([]db.Match, error) {
	if s.local(userID) {
		return s.fb.Matches(fallbackMatches), nil
	}

	return gateway.RunOr(ctx, s.gw, OpFindMatches, func(ctx context.Context, st backend.Store) ([]db.Match, error) {
		want, err := st.SearchCriteria().First(ctx, repository.Where("id", criteriaID))
		if svcErr.Is(err, svcErr.KindNotFound) {
			return nil, &svcErr.Error{Kind: svcErr.KindNotFound, Key: svcErr.KeyCriteriaNotFound, Err: err}
		}
		if err != nil {
			return nil, err
		}

		q := repository.Where("destination_country", want.DestinationCountry).
			Eq("destination_city", want.DestinationCity).
			Neq("user_id", userID).
			Order("created_at", true)
		rows, err := st.SearchCriteria().Select(ctx, q)
		if err != nil {
			return nil, err
		}
		rows = firstPerUser(rows, matchLimit)

		users, err := usersByID(ctx, st, rows)
		if err != nil {
			return nil, err
		}

		c := criteriaOf(want)
		out := make([]db.Match, 0, len(rows))
		for _, r := range rows {
			u, ok := users[r.UserID]
			if !ok {
				continue
			}
			out = append(out, db.Match{
				User:          u,
				Criteria:      r,
				Compatibility: match.Score(match.BaseScore, c, candidate(u, r), match.Remote),
			})
		}
		slices.SortStableFunc(out, func(a, b db.Match) int { return b.Compatibility - a.Compatibility })
		return out, nil
	}, func() ([]db.Match, error) {
		return s.fb.Matches(fallbackMatches), nil
	})
}

// SearchUsers runs an ad hoc search without saving it. Results share the
// destination and travel year; school and airline narrow them when given.
func (s *Service) SearchUsers(ctx context.Context, c match.Criteria) ([]db.Profile, error) {
	if err := validateCriteria(OpSearchUsers, c); err != nil {
		return nil, err
	}
	demo := func() ([]db.Profile, error) {
		found := fallback.FilterProfiles(s.fb.GenerateProfiles(fallbackProfiles), c)
		if len(found) > fallbackResults {
			found = found[:fallbackResults]
		}
		return found, nil
	}
	if s.gw.InFallback() {
		return demo()
	}

	return gateway.RunOr(ctx, s.gw, OpSearchUsers, func(ctx context.Context, st backend.Store) ([]db.Profile, error) {
		year, _, _ := match.SplitYearMonth(c.YearMonth)
		q := repository.Where("destination_country", c.DestinationCountry).
			Eq("destination_city", c.DestinationCity).
			Gte("year_month", year+"-01").
			Lte("year_month", year+"-12").
			Order("created_at", true)
		if c.School != "" {
			q = q.Like("school", c.School)
		}
		if c.Airline != "" {
			q = q.Eq("airline", c.Airline)
		}

		rows, err := st.SearchCriteria().Select(ctx, q)
		if err != nil {
			return nil, err
		}
		rows = firstPerUser(rows, matchLimit)

		users, err := usersByID(ctx, st, rows)
		if err != nil {
			return nil, err
		}

		out := make([]db.Profile, 0, len(rows))
		for _, r := range rows {
			u, ok := users[r.UserID]
			if !ok {
				continue
			}
			p := profileOf(u, r)
			p.Score = match.Score(match.BaseScore, c, candidate(u, r), match.Remote)
			p.BaseScore = p.Score
			out = append(out, p)
		}
		slices.SortStableFunc(out, func(a, b db.Profile) int { return b.Score - a.Score })
		return out, nil
	}, demo)
}

// History pages through the saved searches of userID, newest first.
func (s *Service) History(ctx context.Context, userID, pageToken string, limit int) ([]db.SearchCriteria, string, error) {
	if limit <= 0 {
		limit = historyPageSize
	}
	limit = min(limit, historyMaxPerPage)
	if s.local(userID) {
		return s.fb.SearchHistory(userID), "", nil
	}

	type page struct {
		rows []db.SearchCriteria
		next string
	}
	p, err := gateway.RunOr(ctx, s.gw, OpHistory, func(ctx context.Context, st backend.Store) (page, error) {
		rows, next, err := st.SearchCriteria().Page(ctx, repository.Where("user_id", userID), pageToken, limit)
		return page{rows, next}, err
	}, func() (page, error) {
		return page{rows: s.fb.SearchHistory(userID)}, nil
	})
	return p.rows, p.next, err
}

// DeleteCriteria removes a saved search owned by the session's user.
func (s *Service) DeleteCriteria(ctx context.Context, session, id string) error {
	if s.gw.InFallback() || strings.HasPrefix(id, "demo-") {
		return nil
	}
	_, err := gateway.Run(ctx, s.gw, OpDeleteCriteria, func(ctx context.Context, st backend.Store) (int64, error) {
		row, err := st.SearchCriteria().First(ctx, repository.Where("id", id))
		if svcErr.Is(err, svcErr.KindNotFound) {
			return 0, &svcErr.Error{Kind: svcErr.KindNotFound, Key: svcErr.KeyCriteriaNotFound, Err: err}
		}
		if err != nil {
			return 0, err
		}
		if err := st.Authorize(ctx, session, row.UserID); err != nil {
			return 0, err
		}
		return st.SearchCriteria().Delete(ctx, repository.Where("id", id))
	}, nil)
	return err
}

// PopularDestinations counts saved searches per destination and returns
// the most searched ones.
func (s *Service) PopularDestinations(ctx context.Context) ([]db.Destination, error) {
	if s.gw.InFallback() {
		return s.fb.PopularDestinations(), nil
	}
	return gateway.RunOr(ctx, s.gw, OpPopularDestinations, func(ctx context.Context, st backend.Store) ([]db.Destination, error) {
		rows, err := st.SearchCriteria().Select(ctx, repository.Query{})
		if err != nil {
			return nil, err
		}
		return countDestinations(rows, popularLimit), nil
	}, func() ([]db.Destination, error) {
		return s.fb.PopularDestinations(), nil
	})
}

// RequestContact sends a pending contact request from requesterID.
func (s *Service) RequestContact(ctx context.Context, session, requesterID, targetID, criteriaID, message string) (db.ContactRequest, error) {
	switch {
	case targetID == "":
		return db.ContactRequest{}, svcErr.Validation(OpRequestContact, "target_id is required")
	case targetID == requesterID:
		return db.ContactRequest{}, svcErr.Validation(OpRequestContact, "cannot contact yourself")
	}
	if s.local(requesterID) {
		return s.fb.ContactRequest(requesterID, targetID, criteriaID, message), nil
	}

	req, err := gateway.Run(ctx, s.gw, OpRequestContact, func(ctx context.Context, st backend.Store) (db.ContactRequest, error) {
		if err := st.Authorize(ctx, session, requesterID); err != nil {
			return db.ContactRequest{}, err
		}
		row := db.ContactRequest{
			ID:               uuid.NewString(),
			RequesterID:      requesterID,
			TargetID:         targetID,
			SearchCriteriaID: criteriaID,
			Message:          message,
			Status:           db.ContactPending,
		}
		return row, st.ContactRequests().Insert(ctx, &row)
	}, nil)

	switch svcErr.KindOf(err) {
	case svcErr.KindUnauthenticated:
		return db.ContactRequest{}, &svcErr.Error{Kind: svcErr.KindUnauthenticated, Op: OpRequestContact, Key: svcErr.KeyLoginToContact, Err: err}
	case svcErr.KindPermissionDenied:
		return db.ContactRequest{}, &svcErr.Error{Kind: svcErr.KindPermissionDenied, Op: OpRequestContact, Key: svcErr.KeyContactDenied, Err: err}
	}
	return req, err
}

// ContactRequests lists requests addressed to userID, newest first.
func (s *Service) ContactRequests(ctx context.Context, userID string) ([]db.ContactRequest, error) {
	if s.local(userID) {
		return s.fb.ContactRequests(userID), nil
	}
	return gateway.RunOr(ctx, s.gw, OpContactRequests, func(ctx context.Context, st backend.Store) ([]db.ContactRequest, error) {
		return st.ContactRequests().Select(ctx, repository.Where("target_id", userID).Order("created_at", true))
	}, func() ([]db.ContactRequest, error) {
		return s.fb.ContactRequests(userID), nil
	})
}

// firstPerUser keeps the first row of each user, up to limit users.
func firstPerUser(rows []db.SearchCriteria, limit int) []db.SearchCriteria {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		if seen[r.UserID] {
			continue
		}
		seen[r.UserID] = true
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

func usersByID(ctx context.Context, st backend.Store, rows []db.SearchCriteria) (map[string]db.User, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	users, err := st.Users().Select(ctx, repository.Query{}.In("id", ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func criteriaOf(r db.SearchCriteria) match.Criteria {
	return match.Criteria{
		OriginCity:         r.OriginCity,
		DestinationCountry: r.DestinationCountry,
		DestinationCity:    r.DestinationCity,
		School:             r.School,
		Airline:            r.Airline,
		YearMonth:          r.YearMonth,
	}
}

func candidate(u db.User, r db.SearchCriteria) match.Candidate {
	return match.Candidate{
		OriginCity: u.OriginCity,
		School:     r.School,
		Airline:    r.Airline,
		YearMonth:  r.YearMonth,
		Verified:   u.Verified,
	}
}

func profileOf(u db.User, r db.SearchCriteria) db.Profile {
	p := db.Profile{
		ID:                 u.ID,
		Name:               u.Name,
		OriginCity:         u.OriginCity,
		DestinationCity:    r.DestinationCity,
		DestinationCountry: r.DestinationCountry,
		School:             r.School,
		YearMonth:          r.YearMonth,
		Airline:            r.Airline,
		WhatsAppOptIn:      u.WhatsAppOptIn,
		Verified:           u.Verified,
		Premium:            u.Premium,
		PhotoURL:           u.PhotoURL,
		Interests:          u.Interests,
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	return p
}

func countDestinations(rows []db.SearchCriteria, limit int) []db.Destination {
	type key struct{ country, city string }
	counts := make(map[key]int)
	for _, r := range rows {
		counts[key{r.DestinationCountry, r.DestinationCity}]++
	}

	out := make([]db.Destination, 0, len(counts))
	for k, n := range counts {
		out = append(out, db.Destination{Country: k.country, City: k.city, Count: n})
	}
	slices.SortFunc(out, func(a, b db.Destination) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		if c := strings.Compare(a.Country, b.Country); c != 0 {
			return c
		}
		return strings.Compare(a.City, b.City)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
