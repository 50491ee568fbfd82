package auth

import (
	"testing"
	"time"

	testingpkg "github.com/aristath/cointax/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) *Service {
	db := testingpkg.NewTestDB(t, "accounts")
	service := NewService(NewRepository(db.Conn(), zerolog.Nop()), testSecret, time.Hour, zerolog.Nop())
	service.bcryptCost = bcrypt.MinCost
	return service
}

func TestRegister(t *testing.T) {
	service := newTestService(t)

	user, err := service.Register("  Alice@Example.com ", "correct horse", " Alice ")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	_, err = service.Register("alice@example.com", "another one", "")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRegister_Validation(t *testing.T) {
	service := newTestService(t)

	testCases := []struct {
		name     string
		email    string
		password string
	}{
		{"bad email", "not-an-email", "long enough"},
		{"display name email", "Alice <alice@example.com>", "long enough"},
		{"short password", "bob@example.com", "short"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Register(tc.email, tc.password, "")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLoginAndParseToken(t *testing.T) {
	service := newTestService(t)
	user, err := service.Register("carol@example.com", "s3cret-pass", "Carol")
	require.NoError(t, err)

	token, loggedIn, err := service.Login("CAROL@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	subject, err := service.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)

	_, _, err = service.Login("carol@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = service.Login("nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseToken_Rejects(t *testing.T) {
	service := newTestService(t)
	user, err := service.Register("dave@example.com", "s3cret-pass", "")
	require.NoError(t, err)

	token, _, err := service.Login(user.Email, "s3cret-pass")
	require.NoError(t, err)

	other := NewService(service.users, "ffffffffffffffffffffffffffffffff", time.Hour, zerolog.Nop())
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	_, err = service.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = service.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestUpdateProfile(t *testing.T) {
	service := newTestService(t)
	user, err := service.Register("erin@example.com", "s3cret-pass", "Erin")
	require.NoError(t, err)
	_, err = service.Register("frank@example.com", "s3cret-pass", "Frank")
	require.NoError(t, err)

	updated, err := service.UpdateProfile(user.ID, "", "Erin B")
	require.NoError(t, err)
	assert.Equal(t, "erin@example.com", updated.Email)
	assert.Equal(t, "Erin B", updated.Name)

	updated, err = service.UpdateProfile(user.ID, "Erin.B@Example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "erin.b@example.com", updated.Email)
	assert.Equal(t, "Erin B", updated.Name)

	_, err = service.UpdateProfile(user.ID, "frank@example.com", "")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = service.UpdateProfile("missing", "", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	service := newTestService(t)
	user, err := service.Register("gina@example.com", "first-pass", "")
	require.NoError(t, err)

	assert.ErrorIs(t, service.ChangePassword(user.ID, "wrong-pass", "second-pass"), ErrInvalidCredentials)
	assert.ErrorIs(t, service.ChangePassword(user.ID, "first-pass", "short"), ErrInvalidInput)
	require.NoError(t, service.ChangePassword(user.ID, "first-pass", "second-pass"))

	_, _, err = service.Login(user.Email, "first-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = service.Login(user.Email, "second-pass")
	assert.NoError(t, err)
}
