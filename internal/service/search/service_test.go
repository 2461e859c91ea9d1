package search_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oggyb/edublin-connect/internal/app/apptest"
	"github.com/oggyb/edublin-connect/internal/db"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/fallback"
	"github.com/oggyb/edublin-connect/internal/match"
	"github.com/oggyb/edublin-connect/internal/server"
	"github.com/oggyb/edublin-connect/internal/service/search"
)

type traveller struct {
	id      string
	session string
}

func signUp(t *testing.T, env *apptest.Env, email string) traveller {
	t.Helper()
	res, err := env.App.Gateway.SignUp(context.Background(), db.SignUpData{
		Email:    email,
		Password: "segredo123",
		Name:     strings.Split(email, "@")[0],
	})
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	return traveller{id: res.User.ID, session: res.Session.AccessToken}
}

func toronto(ym, school string) match.Criteria {
	return match.Criteria{
		DestinationCountry: "Canadá",
		DestinationCity:    "Toronto",
		YearMonth:          ym,
		School:             school,
	}
}

func setup(t *testing.T, opts ...apptest.Option) (*search.Service, *apptest.Env) {
	t.Helper()
	env := apptest.New(t, opts...)
	return search.NewSearchService(env.App), env
}

func TestSaveCriteriaValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for name, c := range map[string]match.Criteria{
		"no country": {DestinationCity: "Toronto", YearMonth: "2026-03"},
		"no city":    {DestinationCountry: "Canadá", YearMonth: "2026-03"},
		"bad month":  {DestinationCountry: "Canadá", DestinationCity: "Toronto", YearMonth: "março"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SaveCriteria(ctx, "", "u1", c)
			assert.True(t, svcErr.Is(err, svcErr.KindValidation))
		})
	}
}

func TestSaveCriteriaAndHistory(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	ana := signUp(t, env, "ana@edublin.com")

	first, err := svc.SaveCriteria(ctx, ana.session, ana.id, toronto("2026-03", ""))
	require.NoError(t, err)
	second, err := svc.SaveCriteria(ctx, ana.session, ana.id, toronto("2026-04", ""))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	page, next, err := svc.History(ctx, ana.id, "", 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.NotEmpty(t, next)

	rest, next, err := svc.History(ctx, ana.id, next, 1)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Empty(t, next)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, []string{page[0].ID, rest[0].ID})
}

func TestSaveCriteriaUnknownSession(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.SaveCriteria(context.Background(), "nao-existe", "u1", toronto("2026-03", ""))
	require.Error(t, err)
	assert.Equal(t, "É necessário estar logado para salvar a busca.", svcErr.Localize(err, "pt-BR"))
}

func TestSaveCriteriaDeniedKeepsLocalCopy(t *testing.T) {
	svc, env := setup(t)
	ana := signUp(t, env, "ana@edublin.com")
	bia := signUp(t, env, "bia@edublin.com")

	row, err := svc.SaveCriteria(context.Background(), ana.session, bia.id, toronto("2026-03", ""))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(row.ID, "demo-search-"))

	var n int64
	require.NoError(t, env.DB.Model(&db.SearchCriteria{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestFindMatches(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	ana := signUp(t, env, "ana@edublin.com")
	bia := signUp(t, env, "bia@edublin.com")
	caio := signUp(t, env, "caio@edublin.com")
	duda := signUp(t, env, "duda@edublin.com")

	mine, err := svc.SaveCriteria(ctx, ana.session, ana.id, toronto("2026-03", "ILAC"))
	require.NoError(t, err)
	_, err = svc.SaveCriteria(ctx, caio.session, caio.id, toronto("2026-09", "CLLC"))
	require.NoError(t, err)
	_, err = svc.SaveCriteria(ctx, bia.session, bia.id, toronto("2026-03", "ILAC"))
	require.NoError(t, err)
	_, err = svc.SaveCriteria(ctx, duda.session, duda.id, match.Criteria{
		DestinationCountry: "Irlanda", DestinationCity: "Dublin", YearMonth: "2026-03",
	})
	require.NoError(t, err)

	ms, err := svc.FindMatches(ctx, mine.ID, ana.id)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, bia.id, ms[0].User.ID)
	assert.Equal(t, caio.id, ms[1].User.ID)
	assert.Greater(t, ms[0].Compatibility, ms[1].Compatibility)
	assert.LessOrEqual(t, ms[0].Compatibility, match.MaxScore)
}

func TestFindMatchesUnknownCriteria(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.FindMatches(context.Background(), "nao-existe", "u1")
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	assert.Equal(t, "Critérios de busca não encontrados", svcErr.Localize(err, "pt-BR"))
}

func TestSearchUsersFiltersYear(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	ana := signUp(t, env, "ana@edublin.com")
	bia := signUp(t, env, "bia@edublin.com")

	_, err := svc.SaveCriteria(ctx, ana.session, ana.id, toronto("2026-03", ""))
	require.NoError(t, err)
	_, err = svc.SaveCriteria(ctx, bia.session, bia.id, toronto("2027-03", ""))
	require.NoError(t, err)

	ps, err := svc.SearchUsers(ctx, toronto("2026-05", ""))
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, ana.id, ps[0].ID)
	assert.Equal(t, "2026-03", ps[0].YearMonth)
}

func TestDeleteCriteria(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	ana := signUp(t, env, "ana@edublin.com")
	bia := signUp(t, env, "bia@edublin.com")

	row, err := svc.SaveCriteria(ctx, ana.session, ana.id, toronto("2026-03", ""))
	require.NoError(t, err)

	err = svc.DeleteCriteria(ctx, bia.session, row.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindPermissionDenied))

	require.NoError(t, svc.DeleteCriteria(ctx, ana.session, row.ID))
	err = svc.DeleteCriteria(ctx, ana.session, row.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	require.NoError(t, svc.DeleteCriteria(ctx, "", "demo-search-1"))
}

func TestPopularDestinations(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	ana := signUp(t, env, "ana@edublin.com")
	bia := signUp(t, env, "bia@edublin.com")

	for _, who := range []traveller{ana, bia} {
		_, err := svc.SaveCriteria(ctx, who.session, who.id, toronto("2026-03", ""))
		require.NoError(t, err)
	}
	_, err := svc.SaveCriteria(ctx, ana.session, ana.id, match.Criteria{
		DestinationCountry: "Irlanda", DestinationCity: "Dublin", YearMonth: "2026-03",
	})
	require.NoError(t, err)

	ds, err := svc.PopularDestinations(ctx)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, db.Destination{Country: "Canadá", City: "Toronto", Count: 2}, ds[0])
	assert.Equal(t, db.Destination{Country: "Irlanda", City: "Dublin", Count: 1}, ds[1])
}

func TestRequestContact(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	ana := signUp(t, env, "ana@edublin.com")
	bia := signUp(t, env, "bia@edublin.com")

	_, err := svc.RequestContact(ctx, ana.session, ana.id, ana.id, "", "oi")
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, err = svc.RequestContact(ctx, bia.session, ana.id, bia.id, "", "oi")
	assert.True(t, svcErr.Is(err, svcErr.KindPermissionDenied))

	req, err := svc.RequestContact(ctx, ana.session, ana.id, bia.id, "", "Oi! Vamos juntas?")
	require.NoError(t, err)
	assert.Equal(t, db.ContactPending, req.Status)

	inbox, err := svc.ContactRequests(ctx, bia.id)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, req.ID, inbox[0].ID)
	assert.Equal(t, ana.id, inbox[0].RequesterID)
}

func TestFallbackAnswers(t *testing.T) {
	svc, _ := setup(t, apptest.WithoutBackend())
	ctx := context.Background()

	ms, err := svc.FindMatches(ctx, "qualquer", "u1")
	require.NoError(t, err)
	assert.Len(t, ms, 15)

	ps, err := svc.SearchUsers(ctx, toronto("2026-03", ""))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ps), 12)
	for _, p := range ps {
		assert.True(t, match.MatchesDestination(toronto("", ""), p.DestinationCountry, p.DestinationCity))
	}

	ds, err := svc.PopularDestinations(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ds)

	row, err := svc.SaveCriteria(ctx, "", "u1", toronto("2026-03", ""))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(row.ID, "demo-"))
}

func TestDemoUserStaysLocalWithBackend(t *testing.T) {
	svc, env := setup(t)

	_, err := svc.SaveCriteria(context.Background(), "", fallback.DemoUserID, toronto("2026-03", ""))
	require.NoError(t, err)

	var n int64
	require.NoError(t, env.DB.Model(&db.SearchCriteria{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSearchOverGRPC(t *testing.T) {
	env := apptest.New(t)
	cc := apptest.Serve(t, search.NewRegistrar(env.App))
	ana := signUp(t, env, "ana@edublin.com")
	ctx := context.Background()

	_, err := server.Invoke[search.SaveCriteriaRequest, search.CriteriaReply](ctx, cc, search.ServiceName, "SaveCriteria",
		&search.SaveCriteriaRequest{Criteria: toronto("2026-03", "")})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	authed := server.WithSession(ctx, ana.session)
	saved, err := server.Invoke[search.SaveCriteriaRequest, search.CriteriaReply](authed, cc, search.ServiceName, "SaveCriteria",
		&search.SaveCriteriaRequest{Criteria: toronto("2026-03", "")})
	require.NoError(t, err)
	assert.Equal(t, ana.id, saved.Criteria.UserID)

	hist, err := server.Invoke[search.HistoryRequest, search.HistoryReply](authed, cc, search.ServiceName, "History", &search.HistoryRequest{})
	require.NoError(t, err)
	require.Len(t, hist.Criteria, 1)
	assert.Equal(t, saved.Criteria.ID, hist.Criteria[0].ID)

	pop, err := server.Invoke[emptypb.Empty, search.DestinationsReply](ctx, cc, search.ServiceName, "PopularDestinations", &emptypb.Empty{})
	require.NoError(t, err)
	require.Len(t, pop.Destinations, 1)

	_, err = server.Invoke[search.FindMatchesRequest, search.MatchesReply](authed, cc, search.ServiceName, "FindMatches",
		&search.FindMatchesRequest{CriteriaID: "nao-existe"})
	st := status.Convert(err)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "Critérios de busca não encontrados", st.Message())
}
