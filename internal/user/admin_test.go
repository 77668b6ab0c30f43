package user

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours-api/internal/database"
)

func newAdminRouter(t *testing.T) (*chi.Mux, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	h := NewAdminHandler(database.NewBunDB(mockDB))
	r := chi.NewRouter()
	r.Patch("/{id}", h.UpdateOne)
	return r, mock
}

func TestAdminUpdate_LowercasesEmail(t *testing.T) {
	router, mock := newAdminRouter(t)

	id := uuid.New()
	mock.ExpectQuery(`UPDATE "users" AS "u" SET email = 'bob@example\.com', version = version \+ 1, updated_at = now\(\) WHERE \("u"\."id" = '` + id.String() + `'\) RETURNING \*`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "photo", "role", "active"}).
			AddRow(id.String(), "Bob", "bob@example.com", "default.jpg", "user", true))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/"+id.String(),
		strings.NewReader(`{"email":"Bob@Example.COM"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"bob@example.com"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminUpdate_RejectsInvalidEmail(t *testing.T) {
	router, mock := newAdminRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/"+uuid.NewString(),
		strings.NewReader(`{"email":"not-an-address"}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please provide a valid email")
	require.NoError(t, mock.ExpectationsWereMet())
}
