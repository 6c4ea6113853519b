package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-realtime/internal/models"
)

func TestErrorWritesErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, http.StatusNotFound, ErrCodeNotFound, "notification 7")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, c.IsAborted())

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.ErrorResponse{Code: ErrCodeNotFound, Message: "not found", Details: "notification 7"}, body)
}

func TestMessageUnknownCode(t *testing.T) {
	assert.Equal(t, "", Message(1))
	assert.Equal(t, "forbidden", Message(ErrCodeForbidden))
}
