package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weiwangfds/flashcal/internal/i18n"
)

func TestWrapKeepsChain(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("save plans: %w", Wrap(ErrPersistenceFailed, cause))

	assert.True(t, stderrors.Is(err, ErrPersistenceFailedError))
	assert.False(t, stderrors.Is(err, ErrStoreUnavailableError))
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, HasCode(err, ErrPersistenceFailed))

	appErr, ok := GetAppError(err)
	assert.True(t, ok)
	assert.Equal(t, "disk full", appErr.Details)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode())
}

func TestWrapf(t *testing.T) {
	err := Wrapf(ErrInvalidFormat, stderrors.New("unexpected EOF"), "decode %s", "backup.json")
	assert.Equal(t, "decode backup.json: unexpected EOF", err.Details)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode())

	err = Wrapf(ErrInvalidFormat, nil, "plans is %s", "missing")
	assert.Equal(t, "plans is missing", err.Details)
}

func TestWithDetailsDoesNotMutateSentinel(t *testing.T) {
	e := ErrCapabilityDeniedError.WithDetails("iframe")
	assert.Equal(t, "iframe", e.Details)
	assert.Empty(t, ErrCapabilityDeniedError.Details)
	assert.Equal(t, http.StatusForbidden, e.StatusCode())
}

func TestCapabilityMessagesAreDistinct(t *testing.T) {
	unsupported := GetErrorMessageWithLang(ErrCapabilityUnsupported, i18n.LangEnUS)
	denied := GetErrorMessageWithLang(ErrCapabilityDenied, i18n.LangEnUS)
	assert.NotEqual(t, unsupported, denied)
	assert.Equal(t, "Unknown Error", GetErrorMessageWithLang(ErrorCode(9999), i18n.LangEnUS))
}
