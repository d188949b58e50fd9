package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/config"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestVerifier() *TokenVerifier {
	return NewTokenVerifier(config.JWTConfig{Secret: testSecret, Issuer: "school-identity"})
}

func newTestIdentity() Identity {
	return Identity{TenantID: uuid.New(), UserID: uuid.New(), Username: "bursar"}
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestVerify_RoundTrip(t *testing.T) {
	v := newTestVerifier()
	identity := newTestIdentity()

	token, err := v.Sign(identity, 15*time.Minute)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity, *got)
}

func TestVerify_Expired(t *testing.T) {
	v := newTestVerifier()

	token, err := v.Sign(newTestIdentity(), -time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerify_Rejections(t *testing.T) {
	v := newTestVerifier()
	identity := newTestIdentity()
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	otherSecret, err := NewTokenVerifier(config.JWTConfig{Secret: "another-secret-of-sufficient-size", Issuer: "school-identity"}).
		Sign(identity, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewTokenVerifier(config.JWTConfig{Secret: testSecret, Issuer: "someone-else"}).
		Sign(identity, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "garbage", token: "not-a-token", wantErr: ErrInvalidToken},
		{name: "wrong secret", token: otherSecret, wantErr: ErrInvalidToken},
		{name: "wrong issuer", token: otherIssuer, wantErr: ErrInvalidToken},
		{
			name: "wrong algorithm",
			token: signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), &Claims{
				RegisteredClaims: jwt.RegisteredClaims{Issuer: "school-identity", ExpiresAt: future},
				TenantID:         identity.TenantID.String(),
				UserID:           identity.UserID.String(),
			}),
			wantErr: ErrInvalidToken,
		},
		{
			name: "no expiry",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
				RegisteredClaims: jwt.RegisteredClaims{Issuer: "school-identity"},
				TenantID:         identity.TenantID.String(),
				UserID:           identity.UserID.String(),
			}),
			wantErr: ErrInvalidToken,
		},
		{
			name: "not yet valid",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    "school-identity",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(2 * time.Hour)),
					NotBefore: future,
				},
				TenantID: identity.TenantID.String(),
				UserID:   identity.UserID.String(),
			}),
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "missing tenant",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
				RegisteredClaims: jwt.RegisteredClaims{Issuer: "school-identity", ExpiresAt: future},
				UserID:           identity.UserID.String(),
			}),
			wantErr: ErrMissingTenantID,
		},
		{
			name: "malformed user",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
				RegisteredClaims: jwt.RegisteredClaims{Issuer: "school-identity", ExpiresAt: future},
				TenantID:         identity.TenantID.String(),
				UserID:           "42",
			}),
			wantErr: ErrMissingUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerify_IssuerOptional(t *testing.T) {
	v := NewTokenVerifier(config.JWTConfig{Secret: testSecret})
	token, err := newTestVerifier().Sign(newTestIdentity(), time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.NoError(t, err)
}
