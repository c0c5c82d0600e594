package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"learnpath/internal/auth"
	"learnpath/internal/domain"
	"learnpath/internal/repository"
	"learnpath/internal/repository/sqlite"
)

type authFixture struct {
	svc      AuthService
	users    repository.UserRepository
	sessions *sqlite.RefreshTokenRepository
	tokens   *auth.TokenService
	hook     *logtest.Hook
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	sessions := sqlite.NewRefreshTokenRepository(db)
	require.NoError(t, sqlite.InitAll(ctx, users, sessions))

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret"})
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	svc, err := NewAuthService(users, sessions, auth.NewPasswordHasher(bcrypt.MinCost), tokens, logger)
	require.NoError(t, err)
	return &authFixture{svc: svc, users: users, sessions: sessions, tokens: tokens, hook: hook}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	user, err := f.svc.Register(ctx, "Learner@Example.com", "correct horse", "Learner")
	require.NoError(t, err)
	assert.Equal(t, "learner@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)

	sess, err := f.svc.Login(ctx, "learner@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.User.ID)
	assert.Empty(t, sess.User.PasswordHash)

	uid, err := f.svc.Authenticate(sess.Access.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)

	_, err = f.svc.Authenticate(sess.Refresh.Value)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.svc.Register(ctx, "a@example.com", "short", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Register(ctx, "  ", "long enough", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Register(ctx, "a@example.com", "long enough", "")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, "A@example.com", "long enough", "")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, err := f.svc.Register(ctx, "a@example.com", "long enough", "")
	require.NoError(t, err)

	_, wrongPassword := f.svc.Login(ctx, "a@example.com", "not the one")
	_, unknownEmail := f.svc.Login(ctx, "b@example.com", "long enough")

	assert.ErrorIs(t, wrongPassword, domain.ErrUnauthenticated)
	assert.ErrorIs(t, unknownEmail, domain.ErrUnauthenticated)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestRefreshRotates(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, err := f.svc.Register(ctx, "a@example.com", "long enough", "")
	require.NoError(t, err)
	sess, err := f.svc.Login(ctx, "a@example.com", "long enough")
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, sess.Refresh.Value)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Refresh.ID, next.Refresh.ID)
	assert.Equal(t, sess.User.ID, next.User.ID)

	_, err = f.svc.Refresh(ctx, next.Refresh.Value)
	require.NoError(t, err)
}

func TestRefreshReuseRevokesAllSessions(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, err := f.svc.Register(ctx, "a@example.com", "long enough", "")
	require.NoError(t, err)
	sess, err := f.svc.Login(ctx, "a@example.com", "long enough")
	require.NoError(t, err)
	other, err := f.svc.Login(ctx, "a@example.com", "long enough")
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, sess.Refresh.Value)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, sess.Refresh.Value)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Equal(t, logrus.WarnLevel, f.hook.LastEntry().Level)

	_, err = f.svc.Refresh(ctx, rotated.Refresh.Value)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.svc.Refresh(ctx, other.Refresh.Value)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRefreshRejectsAccessTokenAndGarbage(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, err := f.svc.Register(ctx, "a@example.com", "long enough", "")
	require.NoError(t, err)
	sess, err := f.svc.Login(ctx, "a@example.com", "long enough")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, sess.Access.Value)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = f.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = f.svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshExpired(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, err := f.svc.Register(ctx, "a@example.com", "long enough", "")
	require.NoError(t, err)
	sess, err := f.svc.Login(ctx, "a@example.com", "long enough")
	require.NoError(t, err)

	f.tokens.WithClock(func() time.Time { return time.Now().Add(8 * 24 * time.Hour) })
	_, err = f.svc.Refresh(ctx, sess.Refresh.Value)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user, err := f.svc.Register(ctx, "a@example.com", "long enough", "")
	require.NoError(t, err)
	sess, err := f.svc.Login(ctx, "a@example.com", "long enough")
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, user.ID, "wrong current", "brand new pass")
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = f.svc.ChangePassword(ctx, user.ID, "long enough", "tiny")
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "long enough", "brand new pass"))

	_, err = f.svc.Refresh(ctx, sess.Refresh.Value)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = f.svc.Login(ctx, "a@example.com", "long enough")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.svc.Login(ctx, "a@example.com", "brand new pass")
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user, err := f.svc.Register(ctx, "a@example.com", "long enough", "Ada")
	require.NoError(t, err)

	updated, err := f.svc.UpdateProfile(ctx, user.ID, repository.Fields{"bio": "gopher"})
	require.NoError(t, err)
	assert.Equal(t, "gopher", updated.Bio)
	assert.Equal(t, "Ada", updated.Name)
	assert.Empty(t, updated.PasswordHash)

	same, err := f.svc.UpdateProfile(ctx, user.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "gopher", same.Bio)

	_, err = f.svc.Profile(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
