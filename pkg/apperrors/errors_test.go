package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(ErrBidNotFound))
	assert.Equal(t, KindForbidden, KindOf(ErrNotGigOwner))
	assert.Equal(t, KindConflict, KindOf(ErrGigAlreadyAssigned))
	assert.Equal(t, KindConflict, KindOf(ErrDuplicateBid))
	assert.Equal(t, KindInvalidArgument, KindOf(ErrInvalidPrice))
	assert.Equal(t, KindUnauthorized, KindOf(NewUnauthorizedError("no")))
	assert.Equal(t, KindInfra, KindOf(DatabaseError(errors.New("x"), true)))
	assert.Equal(t, KindInfra, KindOf(errors.New("plain")))
	assert.Equal(t, "conflict", KindConflict.String())
}

func TestIsMatchesCopies(t *testing.T) {
	withDetails := ErrBidNotPending.WithDetails(map[string]string{"bid_id": "1"})
	assert.ErrorIs(t, withDetails, ErrBidNotPending)
	assert.Nil(t, ErrBidNotPending.Details, "оригинал не меняется")

	wrapped := fmt.Errorf("hire: %w", ErrGigAlreadyAssigned.WithError(errors.New("cas miss")))
	assert.ErrorIs(t, wrapped, ErrGigAlreadyAssigned)
	assert.NotErrorIs(t, wrapped, ErrGigNotOpen)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("tx: %w", DatabaseError(errors.New("deadlock"), true))))
	assert.False(t, IsRetryable(DatabaseError(errors.New("syntax"), false)))
	assert.False(t, IsRetryable(ErrGigAlreadyAssigned))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestMarshalJSON(t *testing.T) {
	raw, err := json.Marshal(ErrDuplicateBid.WithError(errors.New("secret")))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "ALREADY_EXISTS", body["code"])
	assert.Equal(t, "bid", body["domain"])
	assert.Equal(t, "You have already placed a bid on this gig", body["message"])
	assert.NotContains(t, string(raw), "secret")
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	respond := func(err error) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		HandleError(c, err)
		return w
	}

	w := respond(ErrNotGigOwner)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"FORBIDDEN"`)

	w = respond(ErrGigAlreadyAssigned)
	assert.Equal(t, http.StatusConflict, w.Code)

	// внутренняя ошибка не раскрывает причину
	w = respond(errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Contains(t, w.Body.String(), "Internal server error")
}
