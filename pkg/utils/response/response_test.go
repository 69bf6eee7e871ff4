package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/kart-io/ragpipe/pkg/utils/errors"
	"github.com/kart-io/ragpipe/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSuccess(t *testing.T) {
	r := Success(map[string]int{"n": 1})
	assert.True(t, r.IsSuccess())
	assert.Equal(t, http.StatusOK, r.HTTPStatus())
	assert.Equal(t, "success", r.Message)
}

func TestErrUsesErrnoStatus(t *testing.T) {
	r := Err(apierrors.ErrRAGFileNotFound)
	assert.False(t, r.IsSuccess())
	assert.Equal(t, http.StatusNotFound, r.HTTPStatus())

	looked := &Response{Code: apierrors.ErrRAGEmptyContent.Code}
	assert.Equal(t, http.StatusBadRequest, looked.HTTPStatus())
}

func TestFailWritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(RequestIDKey, "req-1")

	Fail(c, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apierrors.ErrInternal.Code, body.Code)
	assert.Equal(t, "req-1", body.RequestID)
}

func TestOKWritesData(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, gin.H{"file_id": "f1"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"message":"success","data":{"file_id":"f1"}}`, w.Body.String())
}
