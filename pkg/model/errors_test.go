package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindCodes(t *testing.T) {
	assert.Equal(t, "VALIDATION_ERROR", KindValidation.Code())
	assert.Equal(t, "NOT_FOUND", KindNotFound.Code())
	assert.Equal(t, "TRANSPORT_ERROR", KindTransport.Code())
	assert.Equal(t, "INTERNAL_ERROR", KindInternal.Code())
	assert.Equal(t, "CONFLICT", KindConflict.Code())
}

func TestDatabasefPreservesStatus(t *testing.T) {
	err := Databasef(503, "query on table %q failed", "products")

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, KindDatabase, typed.Kind)
	assert.Equal(t, 503, typed.Status)
	assert.Contains(t, err.Error(), "status 503")
}

func TestTransportfWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transportf(cause, "dial failed")

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsTransport(err))
}

func TestErrorIsMatchesByKind(t *testing.T) {
	a := NotFoundf("no rows")
	b := NotFoundf("different message")
	assert.ErrorIs(t, a, b)

	c := Validationf("bad input")
	assert.NotErrorIs(t, a, c)
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("load settings: %w", Authorizationf("denied"))
	assert.Equal(t, KindAuthorization, KindOf(err))
	assert.True(t, IsAuthorization(err))

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
