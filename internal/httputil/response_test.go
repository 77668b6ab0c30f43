package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours-api/internal/apperror"
)

func TestRespondData_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondData(rec, map[string]string{"name": "The Forest Hiker"}, http.StatusCreated)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"success","data":{"data":{"name":"The Forest Hiker"}}}`, rec.Body.String())
}

func TestRespondList_IncludesResults(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondList(rec, []int{1, 2, 3}, 3)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","results":3,"data":{"data":[1,2,3]}}`, rec.Body.String())
}

func TestRespondNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondNoContent(rec)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRespondError_ClientErrorIsFail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, apperror.NotFound("No document found with that ID"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"fail","message":"No document found with that ID"}`, rec.Body.String())
}

func TestRespondError_ServerErrorIsError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, apperror.Internal("There was an error sending the email. Try again later!"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"There was an error sending the email. Try again later!"}`, rec.Body.String())
}

func TestRespondError_UnknownErrorNeverLeaksInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: connection refused on 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Something went wrong", body["message"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestRespondError_WrappedAppErrorKeepsStatus(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), apperror.BadRequest("Invalid input data."))
	rec := httptest.NewRecorder()
	RespondError(rec, wrapped)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid input data.")
}
