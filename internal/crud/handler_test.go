package crud

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours-api/internal/apperror"
	"github.com/natours/natours-api/internal/database"
)

var tourFilters = []string{"duration", "price", "difficulty"}

func newTourHandler(t *testing.T, cfg Config[database.Tour]) (*Handler[database.Tour], sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewHandler(database.NewBunDB(mockDB), cfg), mock, mockDB
}

func newTourRouter(h *Handler[database.Tour]) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", h.GetAll)
	r.Post("/", h.CreateOne)
	r.Get("/{id}", h.GetOne)
	r.Patch("/{id}", h.UpdateOne)
	r.Delete("/{id}", h.DeleteOne)
	return r
}

func tourRow(id uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "duration", "max_group_size", "difficulty", "price", "summary", "ratings_average", "ratings_quantity", "created_at", "updated_at"}).
		AddRow(id.String(), "The Forest Hiker", 5, 25, "easy", 397.0, "Breathtaking hike", 4.7, 37, time.Now(), time.Now())
}

func TestGetAll_AppliesQueryFeatures(t *testing.T) {
	h, mock, db := newTourHandler(t, Config[database.Tour]{AllowedFilters: tourFilters})
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM "tours" AS "t" WHERE \("t"\."duration" >= 5\) ORDER BY "t"\."price" ASC LIMIT 10 OFFSET 10`).
		WillReturnRows(tourRow(uuid.New()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?duration[gte]=5&sort=price&page=2&limit=10", nil)
	newTourRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string `json:"status"`
		Results int    `json:"results"`
		Data    struct {
			Data []database.Tour `json:"data"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 1, body.Results)
	require.Len(t, body.Data.Data, 1)
	assert.Equal(t, "The Forest Hiker", body.Data.Data[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAll_EmptyResultIsEmptyArray(t *testing.T) {
	h, mock, db := newTourHandler(t, Config[database.Tour]{AllowedFilters: tourFilters})
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM "tours"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	newTourRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":0`)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestGetOne_NotFound(t *testing.T) {
	h, mock, db := newTourHandler(t, Config[database.Tour]{})
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM "tours"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/"+uuid.NewString(), nil)
	newTourRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No document found with that ID")
	assert.Contains(t, rec.Body.String(), `"status":"fail"`)
}

func TestGetOne_InvalidID(t *testing.T) {
	h, _, db := newTourHandler(t, Config[database.Tour]{})
	defer db.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/not-a-uuid", nil)
	newTourRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid id: not-a-uuid")
}

func TestCreateOne_ReturnsDocument(t *testing.T) {
	h, mock, db := newTourHandler(t, Config[database.Tour]{})
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(`INSERT INTO "tours"`).
		WillReturnRows(tourRow(id))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"name":"The Forest Hiker","duration":5,"max_group_size":25,"difficulty":"easy","price":397,"summary":"Breathtaking hike"}`))
	newTourRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), id.String())
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
}

func TestUpdateOne_OnlyWritableColumns(t *testing.T) {
	h, mock, db := newTourHandler(t, Config[database.Tour]{
		WritableColumns: []string{"name", "price"},
	})
	defer db.Close()

	id := uuid.New()
	// ratings_average from the body must not reach the SET list; version and
	// updated_at move automatically.
	mock.ExpectQuery(`UPDATE "tours" AS "t" SET price = 499, version = version \+ 1, updated_at = now\(\) WHERE \("t"\."id" = '` + id.String() + `'\) RETURNING \*`).
		WillReturnRows(tourRow(id))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/"+id.String(),
		strings.NewReader(`{"price":499,"ratings_average":5}`))
	newTourRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOne_BeforeUpdateMutatesBody(t *testing.T) {
	h, mock, db := newTourHandler(t, Config[database.Tour]{
		WritableColumns: []string{"name", "price"},
		BeforeUpdate: func(r *http.Request, body map[string]any) error {
			if name, ok := body["name"].(string); ok {
				body["name"] = strings.ToLower(name)
			}
			return nil
		},
	})
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(`UPDATE "tours" AS "t" SET name = 'the forest hiker', version = version \+ 1, updated_at = now\(\) WHERE \("t"\."id" = '` + id.String() + `'\) RETURNING \*`).
		WillReturnRows(tourRow(id))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/"+id.String(),
		strings.NewReader(`{"name":"The Forest Hiker"}`))
	newTourRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOne_BeforeUpdateRejects(t *testing.T) {
	h, mock, db := newTourHandler(t, Config[database.Tour]{
		WritableColumns: []string{"name"},
		BeforeUpdate: func(r *http.Request, body map[string]any) error {
			return apperror.BadRequest("Invalid input data.")
		},
	})
	defer db.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/"+uuid.NewString(),
		strings.NewReader(`{"name":"x"}`))
	newTourRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOne_NoWritableFields(t *testing.T) {
	h, _, db := newTourHandler(t, Config[database.Tour]{
		WritableColumns: []string{"name", "price"},
	})
	defer db.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/"+uuid.NewString(),
		strings.NewReader(`{"ratings_average":5}`))
	newTourRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteOne_Success(t *testing.T) {
	h, mock, db := newTourHandler(t, Config[database.Tour]{})
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(`DELETE FROM "tours" AS "t" WHERE \(id = '` + id.String() + `'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/"+id.String(), nil)
	newTourRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDeleteOne_NotFoundIs404Not500(t *testing.T) {
	h, mock, db := newTourHandler(t, Config[database.Tour]{})
	defer db.Close()

	mock.ExpectExec(`DELETE FROM "tours"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/"+uuid.NewString(), nil)
	newTourRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No document found with that ID")
}
