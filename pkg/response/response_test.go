package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func render(t *testing.T, write func(c *gin.Context)) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	write(c)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestSuccessEnvelope(t *testing.T) {
	status, resp := render(t, func(c *gin.Context) {
		Success(c, http.StatusCreated, gin.H{"id": "agent-1"})
	})

	require.Equal(t, http.StatusCreated, status)
	require.True(t, resp.Success)
	require.Nil(t, resp.Error)
	require.Nil(t, resp.Meta)
	require.Equal(t, map[string]interface{}{"id": "agent-1"}, resp.Data)
}

func TestSuccessWithMeta(t *testing.T) {
	_, resp := render(t, func(c *gin.Context) {
		SuccessWithMeta(c, http.StatusOK, []string{"a", "b"}, NewMeta(1, 10, 20))
	})

	require.NotNil(t, resp.Meta)
	require.Equal(t, 20, resp.Meta.Total)
	require.Equal(t, 2, resp.Meta.TotalPages)
}

func TestNewMetaRoundsPagesUp(t *testing.T) {
	meta := NewMeta(2, 10, 21)
	require.Equal(t, &Meta{Page: 2, PerPage: 10, Total: 21, TotalPages: 3}, meta)
	require.Zero(t, NewMeta(1, 0, 5).TotalPages)
}

func TestErrorRendersValidationFields(t *testing.T) {
	fields := validator.ValidationErrors{{Field: "email", Tag: "email", Message: "email must be a valid email address"}}

	status, resp := render(t, func(c *gin.Context) { Error(c, fields) })
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, appErrors.ErrBadRequest.Code, resp.Error.Code)
	require.Equal(t, "email must be a valid email address", resp.Error.Message)
	require.Len(t, resp.Error.Fields, 1)
	require.Equal(t, "email", resp.Error.Fields[0].Field)

	wrapped := appErrors.NewBadRequest("payload rejected").WithInternal(fields)
	_, resp = render(t, func(c *gin.Context) { Error(c, wrapped) })
	require.Equal(t, "payload rejected", resp.Error.Message)
	require.Len(t, resp.Error.Fields, 1)
}

func TestErrorKeepsAppErrorStatusAndHidesCause(t *testing.T) {
	status, resp := render(t, func(c *gin.Context) {
		Error(c, appErrors.ErrForbidden.WithInternal(errors.New("cross account")))
	})

	require.Equal(t, http.StatusForbidden, status)
	require.False(t, resp.Success)
	require.Equal(t, appErrors.ErrForbidden.Code, resp.Error.Code)
	require.Equal(t, appErrors.ErrForbidden.Message, resp.Error.Message)
}

func TestErrorDefaultsToInternal(t *testing.T) {
	status, resp := render(t, func(c *gin.Context) { Error(c, errors.New("boom")) })
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, appErrors.ErrInternalServer.Code, resp.Error.Code)

	status, _ = render(t, func(c *gin.Context) { Error(c, nil) })
	require.Equal(t, http.StatusInternalServerError, status)
}

func TestErrorIncludesRequestID(t *testing.T) {
	_, resp := render(t, func(c *gin.Context) {
		c.Set(RequestIDKey, "req-42")
		Error(c, appErrors.ErrNotFound)
	})
	require.Equal(t, "req-42", resp.Error.RequestID)
}
