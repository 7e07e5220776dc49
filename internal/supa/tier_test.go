package supa

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealstream/pkg/model"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestTierKinds(t *testing.T) {
	assert.Equal(t, TierPublic, Public().Kind())
	assert.Equal(t, TierAuthenticated, Authenticated("tok").Kind())
	assert.Equal(t, TierAdmin, Admin().Kind())
	assert.Equal(t, "admin", TierAdmin.String())
}

func TestSubjectOf(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-42"})

	sub, err := SubjectOf(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)
}

func TestSubjectOfEmptyToken(t *testing.T) {
	_, err := SubjectOf("")
	require.Error(t, err)
	assert.Equal(t, model.KindAuthentication, model.KindOf(err))
}

func TestSubjectOfMalformedToken(t *testing.T) {
	_, err := SubjectOf("not-a-jwt")
	require.Error(t, err)
	assert.Equal(t, model.KindAuthentication, model.KindOf(err))
}

func TestSubjectOfMissingSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"aud": "whatever"})
	_, err := SubjectOf(token)
	require.Error(t, err)
	assert.Equal(t, model.KindAuthentication, model.KindOf(err))
}

func TestFactoryCredentials(t *testing.T) {
	factory, err := NewFactory(FactoryConfig{
		URL:        "https://db.example.com",
		AnonKey:    "anon-key",
		ServiceKey: "service-key",
	})
	require.NoError(t, err)

	apikey, bearer, err := factory.Credentials(Public())
	require.NoError(t, err)
	assert.Equal(t, "anon-key", apikey)
	assert.Equal(t, "anon-key", bearer)

	apikey, bearer, err = factory.Credentials(Authenticated("caller-token"))
	require.NoError(t, err)
	assert.Equal(t, "anon-key", apikey)
	assert.Equal(t, "caller-token", bearer)

	// The admin tier uses only the configured service key; nothing a
	// caller supplies can influence it.
	apikey, bearer, err = factory.Credentials(Admin())
	require.NoError(t, err)
	assert.Equal(t, "service-key", apikey)
	assert.Equal(t, "service-key", bearer)
}

func TestFactoryCredentialsEmptyTokenFailsBeforeNetwork(t *testing.T) {
	factory, err := NewFactory(FactoryConfig{URL: "https://db.example.com", AnonKey: "anon"})
	require.NoError(t, err)

	_, _, err = factory.Credentials(Authenticated(""))
	require.Error(t, err)
	assert.Equal(t, model.KindAuthentication, model.KindOf(err))
}

func TestFactoryAdminWithoutServiceKey(t *testing.T) {
	factory, err := NewFactory(FactoryConfig{URL: "https://db.example.com", AnonKey: "anon"})
	require.NoError(t, err)

	_, err = factory.Channel(Admin())
	require.Error(t, err)
	assert.True(t, model.IsAuthorization(err))
}

func TestNewFactoryValidation(t *testing.T) {
	_, err := NewFactory(FactoryConfig{AnonKey: "anon"})
	assert.True(t, model.IsValidation(err))

	_, err = NewFactory(FactoryConfig{URL: "https://db.example.com"})
	assert.True(t, model.IsValidation(err))
}
