package apierrors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addDomainBody struct {
	Domain    string `json:"domain" binding:"required,fqdn"`
	FromEmail string `json:"from_email" binding:"required,email"`
	FromName  string `json:"from_name" binding:"required,max=255"`
}

func bindAndRespond(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/domains", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req addDomainBody
	err := c.ShouldBindJSON(&req)
	require.Error(t, err)
	ValidationError(c, err)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp
}

func TestValidationError_InvalidDomain(t *testing.T) {
	recorder := bindAndRespond(t, `{"domain": "not a domain", "from_email": "hello@acme.fr", "from_name": "Acme"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, "INVALID_INPUT", resp.Code)
	assert.Equal(t, "Domain must be a fully qualified domain name", resp.Error)
}

func TestValidationError_MissingRequiredField(t *testing.T) {
	recorder := bindAndRespond(t, `{"domain": "acme.fr", "from_name": "Acme"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, "FromEmail is required", resp.Error)
}

func TestValidationError_InvalidEmail(t *testing.T) {
	recorder := bindAndRespond(t, `{"domain": "acme.fr", "from_email": "not-an-email", "from_name": "Acme"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, "FromEmail must be a valid email address", resp.Error)
}

func TestValidationError_MalformedJSON(t *testing.T) {
	recorder := bindAndRespond(t, `{"domain": `)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, "INVALID_INPUT", resp.Code)
}
