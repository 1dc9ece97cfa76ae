package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrPersistence, cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "mlbilling: persistence failure: connection reset", err.Error())
	assert.Nil(t, Wrap(ErrPersistence, nil))
}

func TestWrapKeepsExistingKind(t *testing.T) {
	err := fmt.Errorf("model 7: %w", ErrNotFound)
	assert.Same(t, err, Wrap(ErrNotFound, err))
}

func TestKindOfPrefersOutermostWrap(t *testing.T) {
	missing := fmt.Errorf("object models/1/a_v1: %w", ErrNotFound)
	err := fmt.Errorf("load model 1: %w", Wrap(ErrPersistence, missing))

	assert.Equal(t, ErrPersistence, KindOf(err))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", ErrNotFound), http.StatusNotFound},
		{ErrInsufficientFunds, http.StatusPaymentRequired},
		{Wrap(ErrInvalidModel, errors.New("bad yaml")), http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{ErrAlreadyDeleted, http.StatusBadRequest},
		{ErrAccessDenied, http.StatusForbidden},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrInferenceError, http.StatusInternalServerError},
		{ErrPersistence, http.StatusInternalServerError},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(ErrInsufficientFunds))
	assert.True(t, IsClientError(Wrap(ErrAccessDenied, errors.New("owner mismatch"))))
	assert.False(t, IsClientError(ErrInferenceError))
	assert.False(t, IsClientError(Wrap(ErrPersistence, errors.New("disk full"))))
	assert.False(t, IsClientError(errors.New("plain")))
}
