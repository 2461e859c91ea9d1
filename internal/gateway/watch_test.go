package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/edublin-connect/internal/db"
)

func recorder() (func(*db.User), <-chan *db.User) {
	ch := make(chan *db.User, 8)
	return func(u *db.User) { ch <- u }, ch
}

func next(t *testing.T, ch <-chan *db.User) *db.User {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no auth state delivered")
		return nil
	}
}

func TestWatchInFallbackReportsOnce(t *testing.T) {
	f := newFixture(t, withoutBackend())
	ctx := context.Background()
	res, err := f.gw.SignIn(ctx, "demo@edublin.com.br", "demo123")
	require.NoError(t, err)

	fn, ch := recorder()
	stop := f.gw.OnAuthStateChange(ctx, res.Session.AccessToken, fn)
	defer stop()

	u := next(t, ch)
	require.NotNil(t, u)
	assert.Equal(t, res.User.ID, u.ID)
	assert.Empty(t, ch)
}

func TestWatchFollowsSessionEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res := signUp(t, f, "ana@email.com")
	session := res.Session.AccessToken

	fn, ch := recorder()
	stop := f.gw.OnAuthStateChange(ctx, session, fn)
	defer stop()

	initial := next(t, ch)
	require.NotNil(t, initial)
	assert.Equal(t, "Ana Souza", initial.Name)

	// a second sign-in by the same user is reported with the profile
	_, err := f.gw.SignIn(ctx, "ana@email.com", "segredo123")
	require.NoError(t, err)
	u := next(t, ch)
	require.NotNil(t, u)
	assert.Equal(t, res.User.ID, u.ID)

	// an unrelated user's sign-in is not
	signUp(t, f, "joao@email.com")

	require.NoError(t, f.gw.SignOut(ctx, session))
	assert.Nil(t, next(t, ch))
}

func TestWatchUnknownSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fn, ch := recorder()
	stop := f.gw.OnAuthStateChange(ctx, "bogus", fn)
	stop()
	stop()

	assert.Nil(t, next(t, ch))
}

func TestWatchWhileOpenUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := signUp(t, f, "ana@email.com")

	f.store.Fail("Ping", assert.AnError)
	f.gw.TestConnection(ctx)
	f.gw.TestConnection(ctx)
	require.True(t, f.br.Snapshot().IsOpen)
	f.store.ResetCalls()

	fn, ch := recorder()
	stop := f.gw.OnAuthStateChange(ctx, res.Session.AccessToken, fn)
	defer stop()

	u := next(t, ch)
	require.NotNil(t, u)
	assert.Equal(t, res.User.ID, u.ID)
	assert.Zero(t, f.store.Calls("GetUser"))
}
