package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassesThroughWrapped(t *testing.T) {
	base := NewForbidden("nope")
	wrapped := fmt.Errorf("assign: %w", base)

	got := ToDomainError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeForbidden, got.Code)
	assert.Equal(t, http.StatusForbidden, got.HTTPStatus)
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	got := ToDomainError(fmt.Errorf("get ticket: %w", pgx.ErrNoRows))
	assert.Equal(t, CodeNotFound, got.Code)
	assert.Equal(t, http.StatusNotFound, got.HTTPStatus)
}

func TestToDomainErrorMapsFiberError(t *testing.T) {
	got := ToDomainError(fiber.NewError(http.StatusForbidden, "insufficient role"))
	assert.Equal(t, CodeForbidden, got.Code)
	assert.Equal(t, "insufficient role", got.Message)
}

func TestToDomainErrorDefaultsToInternal(t *testing.T) {
	got := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

func TestInvalidTransitionDetails(t *testing.T) {
	err := NewInvalidTransition("OPEN", "CLOSED")
	assert.True(t, HasCode(err, CodeInvalidTransition))
	de := ToDomainError(err)
	assert.Equal(t, "OPEN", de.Details["from"])
	assert.Equal(t, "CLOSED", de.Details["to"])
	assert.Contains(t, err.Error(), "OPEN to CLOSED")
}
