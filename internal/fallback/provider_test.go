package fallback_test

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/fallback"
	"github.com/oggyb/edublin-connect/internal/match"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newProvider() *fallback.Provider {
	return fallback.New(
		fallback.WithRand(rand.New(rand.NewPCG(7, 11))),
		fallback.WithClock(func() time.Time { return fixedNow }),
	)
}

func TestGenerateProfiles(t *testing.T) {
	profiles := newProvider().GenerateProfiles(20)
	require.Len(t, profiles, 20)

	for i, p := range profiles {
		assert.True(t, strings.HasPrefix(p.ID, "demo-"))
		assert.GreaterOrEqual(t, p.Age, 18)
		assert.LessOrEqual(t, p.Age, 27)
		assert.GreaterOrEqual(t, p.Score, 60)
		assert.Less(t, p.Score, 100)
		assert.Equal(t, p.BaseScore, p.Score)
		assert.GreaterOrEqual(t, len(p.Interests), 3)
		assert.LessOrEqual(t, len(p.Interests), 8)

		_, _, ok := match.SplitYearMonth(p.YearMonth)
		assert.True(t, ok, p.YearMonth)
		assert.True(t, strings.HasPrefix(p.YearMonth, "2025") || strings.HasPrefix(p.YearMonth, "2026"))

		if i > 0 {
			assert.GreaterOrEqual(t, profiles[i-1].Score, p.Score)
		}
	}
	assert.Nil(t, newProvider().GenerateProfiles(0))
}

func TestGenerateProfiles_Reproducible(t *testing.T) {
	assert.Equal(t, newProvider().GenerateProfiles(10), newProvider().GenerateProfiles(10))
}

func TestFilterProfiles_Idempotent(t *testing.T) {
	profiles := newProvider().GenerateProfiles(40)
	c := match.Criteria{
		OriginCity:         "São Paulo",
		DestinationCountry: "Canadá",
		DestinationCity:    "Toronto",
		School:             "University",
		YearMonth:          "2026-03",
	}

	once := fallback.FilterProfiles(profiles, c)
	twice := fallback.FilterProfiles(once, c)

	ids := func(ps []db.Profile) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}
	assert.Equal(t, ids(once), ids(twice))
	assert.Equal(t, once, twice)
}

func TestFilterProfiles_DoesNotMutateInput(t *testing.T) {
	profiles := newProvider().GenerateProfiles(15)
	before := slices.Clone(profiles)

	_ = fallback.FilterProfiles(profiles, match.Criteria{DestinationCountry: "a", YearMonth: "2025-05"})
	assert.Equal(t, before, profiles)
}

func TestFilterProfiles_Scoring(t *testing.T) {
	profiles := []db.Profile{
		{ID: "demo-1", DestinationCountry: "Irlanda", DestinationCity: "Dublin", OriginCity: "Recife, PE",
			School: "Trinity College Dublin", YearMonth: "2026-02", BaseScore: 70, Score: 70},
		{ID: "demo-2", DestinationCountry: "Irlanda", DestinationCity: "Cork", OriginCity: "Curitiba, PR",
			School: "UCC", YearMonth: "2025-02", BaseScore: 90, Score: 90},
		{ID: "demo-3", DestinationCountry: "França", DestinationCity: "Paris", OriginCity: "Recife, PE",
			YearMonth: "2026-02", BaseScore: 99, Score: 99},
	}
	c := match.Criteria{
		OriginCity:         "recife",
		DestinationCountry: "irlanda",
		DestinationCity:    "dublin",
		School:             "trinity",
		YearMonth:          "2026-04",
	}

	out := fallback.FilterProfiles(profiles, c)
	require.Len(t, out, 2)
	// 70 + origin 15 + school 20 + year 15 + month 10, capped
	assert.Equal(t, "demo-1", out[0].ID)
	assert.Equal(t, 100, out[0].Score)
	assert.Equal(t, "demo-2", out[1].ID)
	assert.Equal(t, 90, out[1].Score)
}

func TestFilterProfiles_TiesBreakByID(t *testing.T) {
	profiles := []db.Profile{
		{ID: "demo-b", DestinationCountry: "Canadá", BaseScore: 80, Score: 80},
		{ID: "demo-a", DestinationCountry: "Canadá", BaseScore: 80, Score: 80},
	}
	out := fallback.FilterProfiles(profiles, match.Criteria{DestinationCountry: "Canada"})
	require.Len(t, out, 2)
	assert.Equal(t, "demo-a", out[0].ID)
}

func TestDemoIdentity(t *testing.T) {
	p := newProvider()
	u := p.DemoUser()
	assert.Equal(t, fallback.DemoUserID, u.ID)
	assert.Equal(t, "demo@edublin.com.br", u.Email)
	assert.True(t, u.Verified)
	assert.True(t, fallback.IsDemoUser(u.ID))

	creds := fallback.DemoCredentials()
	assert.Equal(t, "demo123", creds.Password)
}

func TestUserFromSignUp(t *testing.T) {
	age := 24
	u := newProvider().UserFromSignUp(db.SignUpData{Email: "x@y.com", Name: "Xavier", Age: &age})
	assert.True(t, strings.HasPrefix(u.ID, "demo-user-"))
	assert.True(t, fallback.IsDemoUser(u.ID))
	assert.True(t, u.Verified)
	assert.False(t, u.Premium)
	assert.Equal(t, 24, *u.Age)
	assert.Equal(t, fixedNow, u.CreatedAt)
}

func TestMinimalUser(t *testing.T) {
	p := newProvider()
	confirmed := fixedNow.Add(-time.Hour)

	u := p.MinimalUser(&db.AuthUser{
		ID:               "u-1",
		Metadata:         map[string]string{"name": "Rita", "age": "30", "phone": "+55"},
		EmailConfirmedAt: &confirmed,
	}, "rita@x.com")
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "rita@x.com", u.Email)
	assert.Equal(t, "Rita", u.Name)
	assert.Equal(t, 30, *u.Age)
	assert.True(t, u.Verified)

	anon := p.MinimalUser(nil, "")
	assert.Equal(t, "offline-user", anon.ID)
	assert.Equal(t, "Usuário", anon.Name)
	assert.False(t, anon.Verified)
	assert.False(t, fallback.IsDemoUser("u-1"))
}

func TestMatches(t *testing.T) {
	ms := newProvider().Matches(15)
	require.Len(t, ms, 15)
	for _, m := range ms {
		assert.Equal(t, "demo-criteria-"+m.User.ID, m.Criteria.ID)
		assert.Equal(t, m.User.WhatsAppOptIn, m.User.WhatsApp != "")
		assert.Less(t, m.User.Reports, 3)
	}
}

func TestDemoRecords(t *testing.T) {
	p := newProvider()

	dests := p.PopularDestinations()
	require.Len(t, dests, 8)
	assert.Equal(t, "Toronto", dests[0].City)
	assert.Equal(t, 45, dests[0].Count)

	h := p.SearchHistory("u-9")
	require.Len(t, h, 2)
	assert.Equal(t, "u-9", h[0].UserID)
	assert.True(t, h[0].CreatedAt.After(h[1].CreatedAt))

	reqs := p.ContactRequests("u-9")
	require.Len(t, reqs, 1)
	assert.Equal(t, db.ContactPending, reqs[0].Status)

	saved := p.SavedCriteria("u-9", match.Criteria{DestinationCity: "Dublin", YearMonth: "2026-01"})
	assert.True(t, strings.HasPrefix(saved.ID, "demo-search-"))
	assert.Equal(t, "Dublin", saved.DestinationCity)

	assert.Len(t, p.Tips(), 5)
	assert.Len(t, p.SuccessMessages(), 5)
	assert.Len(t, p.UserVariations(), 3)
	assert.Equal(t, 1250, p.Stats().TotalUsers)
}
