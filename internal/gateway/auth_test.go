package gateway_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/edublin-connect/internal/db"
	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/gateway"
)

func signUp(t *testing.T, f *fixture, email string) *gateway.AuthResult {
	t.Helper()
	age := 24
	res, err := f.gw.SignUp(context.Background(), db.SignUpData{
		Email:    email,
		Password: "segredo123",
		Name:     "Ana Souza",
		Age:      &age,
	})
	require.NoError(t, err)
	return res
}

func TestFallbackSignInWithoutBackend(t *testing.T) {
	f := newFixture(t, withoutBackend())
	ctx := context.Background()

	res, err := f.gw.SignIn(ctx, "DEMO@edublin.com.br", "demo123")
	require.NoError(t, err)
	assert.Equal(t, "demo-user-default", res.User.ID)
	require.NotNil(t, res.Session)
	assert.True(t, gateway.IsLocalSession(res.Session.AccessToken))

	u, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, res.User.ID, u.ID)

	_, err = f.gw.SignIn(ctx, "demo@edublin.com.br", "wrong")
	require.Error(t, err)
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidCredentials))
	assert.Contains(t, svcErr.Localize(err, "pt-BR"), "demo@edublin.com.br")

	_, err = f.gw.SignIn(ctx, "", "demo123")
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidCredentials))
}

func TestFallbackDemoSignInAlwaysChecksPassword(t *testing.T) {
	f := newFixture(t, withoutBackend())
	ctx := context.Background()

	for range 2 {
		_, err := f.gw.SignIn(ctx, "demo@edublin.com.br", "demo123")
		require.NoError(t, err)
	}
	_, err := f.gw.SignIn(ctx, "Demo@Edublin.com.br", "outra-senha")
	require.Error(t, err)
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidCredentials))
}

func TestFallbackSignUpThenSignIn(t *testing.T) {
	f := newFixture(t, withoutBackend())
	ctx := context.Background()

	res := signUp(t, f, "nova@email.com")
	assert.True(t, res.User.Verified)
	assert.Equal(t, "Ana Souza", res.User.Name)
	require.NotNil(t, res.Session)

	// a new session for the same email finds the stored user
	again, err := f.gw.SignIn(ctx, "Nova@Email.com", "anything")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
	assert.NotEqual(t, res.Session.AccessToken, again.Session.AccessToken)
}

func TestSignUpValidation(t *testing.T) {
	f := newFixture(t, withoutBackend())
	ctx := context.Background()

	_, err := f.gw.SignUp(ctx, db.SignUpData{Email: "not-an-email", Password: "segredo123", Name: "Ana"})
	require.Error(t, err)
	var e *svcErr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, svcErr.KeyInvalidEmail, e.Key)

	_, err = f.gw.SignUp(ctx, db.SignUpData{Email: "ana@email.com", Password: "123", Name: "Ana"})
	assert.True(t, svcErr.Is(err, svcErr.KindWeakPassword))

	_, err = f.gw.SignUp(ctx, db.SignUpData{Email: "ana@email.com", Password: "segredo123"})
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
}

func TestSignUpCreatesProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := signUp(t, f, "ana@email.com")
	require.NotNil(t, res.Session)
	assert.Equal(t, "ana@email.com", res.User.Email)
	assert.True(t, res.User.Verified)

	var row db.User
	require.NoError(t, f.gdb.First(&row, "id = ?", res.User.ID).Error)
	assert.Equal(t, "Ana Souza", row.Name)
	require.NotNil(t, row.Age)
	assert.Equal(t, 24, *row.Age)

	_, err := f.gw.SignUp(ctx, db.SignUpData{Email: "ana@email.com", Password: "segredo123", Name: "Ana"})
	assert.True(t, svcErr.Is(err, svcErr.KindAlreadyRegistered))
	assert.Zero(t, f.br.Snapshot().FailureCount)
}

func TestSignUpKeepsAccountWhenProfileFails(t *testing.T) {
	f := newFixture(t)
	f.store.Fail("Users.Insert", errors.New("disk full"))

	res := signUp(t, f, "ana@email.com")
	assert.Equal(t, "Ana Souza", res.User.Name)
	assert.NotEmpty(t, res.User.ID)
	assert.Equal(t, 1, f.br.Snapshot().FailureCount)
}

func TestSignUpAwaitingConfirmation(t *testing.T) {
	f := newFixture(t, withConfirmation())
	ctx := context.Background()

	res := signUp(t, f, "ana@email.com")
	assert.Nil(t, res.Session)
	assert.False(t, res.User.Verified)

	_, err := f.gw.SignIn(ctx, "ana@email.com", "segredo123")
	assert.True(t, svcErr.Is(err, svcErr.KindEmailNotConfirmed))

	var tok db.AuthToken
	require.NoError(t, f.gdb.Where("purpose = ?", db.PurposeConfirmEmail).First(&tok).Error)
	u, err := f.gw.ConfirmEmail(ctx, tok.Token)
	require.NoError(t, err)
	assert.True(t, u.Verified)
	assert.Equal(t, res.User.ID, u.ID)

	var row db.User
	require.NoError(t, f.gdb.First(&row, "id = ?", res.User.ID).Error)
	assert.True(t, row.Verified)

	_, err = f.gw.ConfirmEmail(ctx, tok.Token)
	require.Error(t, err)
	var e *svcErr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, svcErr.KeySessionNotFound, e.Key)

	_, err = f.gw.SignIn(ctx, "ana@email.com", "segredo123")
	assert.NoError(t, err)
}

func TestFallbackConfirmAndReset(t *testing.T) {
	f := newFixture(t, withoutBackend())
	ctx := context.Background()

	u, err := f.gw.ConfirmEmail(ctx, "whatever")
	require.NoError(t, err)
	assert.Equal(t, "demo-user-default", u.ID)
	assert.NoError(t, f.gw.ResetPassword(ctx, "ana@email.com"))
}

func TestResetPasswordIsSilentForUnknownEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signUp(t, f, "ana@email.com")

	assert.NoError(t, f.gw.ResetPassword(ctx, "ana@email.com"))
	assert.NoError(t, f.gw.ResetPassword(ctx, "ninguem@email.com"))

	var n int64
	require.NoError(t, f.gdb.Model(&db.AuthToken{}).Where("purpose = ?", db.PurposeResetPassword).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestSignInLoadsProfileAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signUp(t, f, "ana@email.com")
	f.store.ResetCalls()

	res, err := f.gw.SignIn(ctx, "ana@email.com", "segredo123")
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", res.User.Name)
	assert.Equal(t, 1, f.store.Calls("Users.First"))

	u, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, res.User.ID, u.ID)
	assert.Zero(t, f.store.Calls("GetUser"))

	_, err = f.gw.SignIn(ctx, "ana@email.com", "errada")
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidCredentials))
	assert.Zero(t, f.br.Snapshot().FailureCount)
}

func TestSignInCreatesMissingProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// an account with no profile row, as after a failed sign-up insert
	_, _, err := f.store.GormStore.SignUp(ctx, "joao.silva@email.com", "segredo123", nil)
	require.NoError(t, err)

	res, err := f.gw.SignIn(ctx, "joao.silva@email.com", "segredo123")
	require.NoError(t, err)
	assert.Equal(t, "joao.silva", res.User.Name)
	assert.Equal(t, 1, f.store.Calls("Users.Insert"))

	var row db.User
	require.NoError(t, f.gdb.First(&row, "id = ?", res.User.ID).Error)
	assert.Equal(t, "joao.silva", row.Name)
}

func TestSignInProfileFailureYieldsMinimalUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := signUp(t, f, "ana@email.com")
	f.store.Fail("Users.First", errors.New("connection reset"))

	got, err := f.gw.SignIn(ctx, "ana@email.com", "segredo123")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, got.User.ID)
	assert.Equal(t, "Ana Souza", got.User.Name)
	assert.Empty(t, got.User.OriginCity)
}

func TestConcurrentSignInsShareOneCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signUp(t, f, "ana@email.com")
	f.store.ResetCalls()
	f.store.Delay("SignIn", 300*time.Millisecond)

	var wg sync.WaitGroup
	results := make([]*gateway.AuthResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.gw.SignIn(ctx, "ana@email.com", "segredo123")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.Calls("SignIn"))
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].Session.AccessToken, r.Session.AccessToken)
	}
	// callers get independent copies
	results[0].User.Name = "changed"
	assert.Equal(t, "Ana Souza", results[1].User.Name)
}

func TestCanceledSignInLeavesSharedCallRunning(t *testing.T) {
	f := newFixture(t)
	signUp(t, f, "ana@email.com")
	f.store.ResetCalls()
	f.store.Delay("SignIn", 300*time.Millisecond)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.gw.SignIn(first, "ana@email.com", "segredo123")
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan *gateway.AuthResult, 1)
	go func() {
		res, err := f.gw.SignIn(context.Background(), "ana@email.com", "segredo123")
		assert.NoError(t, err)
		second <- res
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	res := <-second
	require.NotNil(t, res)
	assert.Equal(t, "Ana Souza", res.User.Name)
	assert.Equal(t, 1, f.store.Calls("SignIn"))
	assert.Zero(t, f.br.Snapshot().FailureCount)
}

func TestCurrentUserReturnsIndependentCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := signUp(t, f, "ana@email.com")

	u, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, u.Age)
	*u.Age = 99
	u.Interests = append(u.Interests, "changed")

	again, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 24, *again.Age)
	assert.NotContains(t, again.Interests, "changed")
}

func TestUpdateProfileThenCurrentUserFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := signUp(t, f, "ana@email.com")
	session := res.Session.AccessToken

	name := "Ana Paula"
	interests := []string{"Idiomas", "Surf"}
	u, err := f.gw.UpdateProfile(ctx, session, res.User.ID, db.ProfileUpdate{Name: &name, Interests: &interests})
	require.NoError(t, err)
	assert.Equal(t, "Ana Paula", u.Name)
	assert.Equal(t, interests, u.Interests)

	f.store.ResetCalls()
	got, err := f.gw.CurrentUser(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana Paula", got.Name)
	assert.Zero(t, f.store.Calls("GetUser"))
	assert.Zero(t, f.store.Calls("Users.First"))
}

func TestUpdateProfileRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := signUp(t, f, "ana@email.com")
	joao := signUp(t, f, "joao@email.com")

	name := "Intruso"
	_, err := f.gw.UpdateProfile(ctx, ana.Session.AccessToken, joao.User.ID, db.ProfileUpdate{Name: &name})
	assert.True(t, svcErr.Is(err, svcErr.KindPermissionDenied))

	_, err = f.gw.UpdateProfile(ctx, "bogus", ana.User.ID, db.ProfileUpdate{Name: &name})
	assert.True(t, svcErr.Is(err, svcErr.KindUnauthenticated))
	assert.Zero(t, f.br.Snapshot().FailureCount)
}

func TestFallbackUpdateProfile(t *testing.T) {
	f := newFixture(t, withoutBackend())
	ctx := context.Background()

	city := "Curitiba, PR"
	_, err := f.gw.UpdateProfile(ctx, "demo-token-unknown", "x", db.ProfileUpdate{OriginCity: &city})
	require.Error(t, err)
	var e *svcErr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, svcErr.KindNotFound, e.Kind)
	assert.Equal(t, svcErr.KeyDemoUserNotFound, e.Key)

	res, err := f.gw.SignIn(ctx, "demo@edublin.com.br", "demo123")
	require.NoError(t, err)
	u, err := f.gw.UpdateProfile(ctx, res.Session.AccessToken, res.User.ID, db.ProfileUpdate{OriginCity: &city})
	require.NoError(t, err)
	assert.Equal(t, city, u.OriginCity)

	got, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, city, got.OriginCity)
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("fallback", func(t *testing.T) {
		f := newFixture(t, withoutBackend())
		res, err := f.gw.SignIn(ctx, "demo@edublin.com.br", "demo123")
		require.NoError(t, err)
		require.NoError(t, f.gw.SignOut(ctx, res.Session.AccessToken))

		u, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("remote", func(t *testing.T) {
		f := newFixture(t)
		res := signUp(t, f, "ana@email.com")
		require.NoError(t, f.gw.SignOut(ctx, res.Session.AccessToken))

		u, err := f.gw.CurrentUser(ctx, res.Session.AccessToken)
		require.NoError(t, err)
		assert.Nil(t, u)
		assert.Equal(t, 1, f.store.Calls("GetUser"))
	})

	t.Run("remote failure still succeeds", func(t *testing.T) {
		f := newFixture(t)
		res := signUp(t, f, "ana@email.com")
		f.store.Fail("SignOut", errors.New("connection reset"))
		assert.NoError(t, f.gw.SignOut(ctx, res.Session.AccessToken))
	})
}

func TestCurrentUserUnknownSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.gw.CurrentUser(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = f.gw.CurrentUser(ctx, "bogus")
	require.NoError(t, err)
	assert.Nil(t, u)
	// the negative answer is cached
	_, _ = f.gw.CurrentUser(ctx, "bogus")
	assert.Equal(t, 1, f.store.Calls("GetUser"))
}
