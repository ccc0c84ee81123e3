package xerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserFacingf_HTTPStatus(t *testing.T) {
	err := UserFacingf("bad_input", "quantity must be positive")
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())

	notFound := UserFacingf("not_found", "order %d not found", 7)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus())
}

func TestForbiddenAndUnauthorized_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, Forbiddenf("nope").HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, Unauthorizedf("nope").HTTPStatus())
}

func TestStorefAndOtherInternalf_Are5xxAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")

	store := Storef(cause, "store unreachable")
	assert.Equal(t, http.StatusInternalServerError, store.HTTPStatus())
	assert.ErrorIs(t, store, cause)

	other := OtherInternalf(cause, "join failed")
	assert.Equal(t, http.StatusInternalServerError, other.HTTPStatus())
	assert.ErrorIs(t, other, cause)
}

func TestEachErrorGetsADistinctTraceID(t *testing.T) {
	a := UserFacingf("x", "a")
	b := UserFacingf("x", "b")
	assert.NotEmpty(t, a.TraceID)
	assert.NotEqual(t, a.TraceID, b.TraceID)
}

func TestWire_CarriesKindCodeMessageTraceID(t *testing.T) {
	err := Forbiddenf("user %d does not own order %d", 1, 2)
	payload := err.Wire()
	assert.Equal(t, string(Authorization), payload.Kind)
	assert.Equal(t, "forbidden", payload.Code)
	assert.Equal(t, err.TraceID, payload.TraceID)
}
