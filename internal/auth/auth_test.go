package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockapp/m/domain"
	"stockapp/m/internal/store"
	"stockapp/m/internal/testdb"
)

func TestPasswordRoundTrip(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hashed)
	assert.True(t, CheckPassword(hashed, "s3cret"))
	assert.False(t, CheckPassword(hashed, "nope"))
}

func TestTokensIssueAndParse(t *testing.T) {
	tokens := NewTokens("secret", 30*time.Minute)
	u := &domain.User{ID: 7, Username: "ana", IsAdmin: true}

	raw, err := tokens.Issue(u)
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserID)
	assert.Equal(t, "ana", claims.Subject)
	assert.True(t, claims.IsAdmin)
}

func TestTokensRejectExpiredAndForeign(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	raw, err := tokens.Issue(&domain.User{ID: 1, Username: "ana"})
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokens("other-secret", time.Minute)
	raw, err = other.Issue(&domain.User{ID: 1, Username: "ana"})
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Minute).Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	s := store.New(db)

	hashed, err := HashPassword("pw")
	require.NoError(t, err)
	require.NoError(t, s.Users.Create(ctx, &domain.User{Username: "ana", HashedPassword: hashed, IsActive: true}))
	require.NoError(t, s.Users.Create(ctx, &domain.User{Username: "old", HashedPassword: hashed, IsActive: false}))

	u, err := Authenticate(ctx, db, "ana", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ana", u.Username)

	_, err = Authenticate(ctx, db, "ana", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = Authenticate(ctx, db, "ghost", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = Authenticate(ctx, db, "old", "pw")
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestUserContext(t *testing.T) {
	assert.Nil(t, UserFromContext(context.Background()))
	u := &domain.User{ID: 3}
	assert.Same(t, u, UserFromContext(WithUser(context.Background(), u)))
}
