package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/topgo-reports/internal/locations"
	"github.com/sol1corejz/topgo-reports/internal/models"
	"github.com/sol1corejz/topgo-reports/internal/reports"
	"github.com/sol1corejz/topgo-reports/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	files     map[models.ReportKind][]models.ReportFile
	gotOwners []int64
	err       error
}

func (f *fakeRegistry) ListReports(ctx context.Context, kind models.ReportKind, owners ...int64) ([]models.ReportFile, error) {
	f.gotOwners = owners
	return f.files[kind], f.err
}

func (f *fakeRegistry) GetReport(ctx context.Context, kind models.ReportKind, filename string) (models.ReportFile, error) {
	for _, file := range f.files[kind] {
		if file.Filename == filename {
			return file, nil
		}
	}
	return models.ReportFile{}, storage.ErrReportNotFound
}

type fakeGenerator struct {
	dir     string
	ownerID int64
	err     error
}

func (f *fakeGenerator) file(kind models.ReportKind, owner *int64) models.ReportFile {
	return models.ReportFile{ID: 7, Kind: kind, OwnerID: owner, Filename: "new.xlsx"}
}

func (f *fakeGenerator) RestaurantOrders(ctx context.Context, id int64) (models.ReportFile, error) {
	f.ownerID = id
	return f.file(models.KindRestaurant, &id), f.err
}

func (f *fakeGenerator) RestaurantCurators(ctx context.Context) (models.ReportFile, error) {
	return f.file(models.KindRestaurantCurators, nil), f.err
}

func (f *fakeGenerator) CourierSessions(ctx context.Context, id int64) (models.ReportFile, error) {
	f.ownerID = id
	return f.file(models.KindCourier, &id), f.err
}

func (f *fakeGenerator) CourierCuratorsArchive(ctx context.Context) (models.ReportFile, error) {
	return f.file(models.KindCourierCurators, nil), f.err
}

func (f *fakeGenerator) FilePath(filename string) (string, error) {
	if filepath.Base(filename) != filename || filepath.Ext(filename) != ".xlsx" {
		return "", reports.ErrInvalidFilename
	}
	return filepath.Join(f.dir, filename), nil
}

type fakeLocations struct {
	set     map[int64]locations.Coords
	removed []int64
}

func (f *fakeLocations) Set(ctx context.Context, id int64, c locations.Coords) error {
	if c.Lat > 90 {
		return locations.ErrInvalidCoords
	}
	f.set[id] = c
	return nil
}

func (f *fakeLocations) All(ctx context.Context) ([]locations.Location, error) {
	var out []locations.Location
	for id, c := range f.set {
		out = append(out, locations.Location{CourierID: id, Lat: c.Lat, Lng: c.Lng})
	}
	return out, nil
}

func (f *fakeLocations) Remove(ctx context.Context, id int64) error {
	f.removed = append(f.removed, id)
	delete(f.set, id)
	return nil
}

type testEnv struct {
	app       *fiber.App
	registry  *fakeRegistry
	generator *fakeGenerator
	locations *fakeLocations
}

func newTestEnv(t *testing.T, checks ...HealthCheck) *testEnv {
	t.Helper()
	env := &testEnv{
		app:       fiber.New(),
		registry:  &fakeRegistry{files: map[models.ReportKind][]models.ReportFile{}},
		generator: &fakeGenerator{dir: t.TempDir()},
		locations: &fakeLocations{set: map[int64]locations.Coords{}},
	}
	New(env.registry, env.generator, env.locations, checks...).Register(env.app)
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestListOwnedReports(t *testing.T) {
	env := newTestEnv(t)
	owner := int64(5)
	env.registry.files[models.KindCourier] = []models.ReportFile{
		{ID: 1, Kind: models.KindCourier, OwnerID: &owner, Filename: "a.xlsx", CreationDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	resp := env.do(t, http.MethodGet, "/api/reports/courier/5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []models.ReportFile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "a.xlsx", got[0].Filename)
	assert.Equal(t, []int64{5}, env.registry.gotOwners)
}

func TestListReports_EmptyAndErrors(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/reports/restaurant_curators", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, env.registry.gotOwners)

	resp = env.do(t, http.MethodGet, "/api/reports/restaurant/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.registry.err = errors.New("db down")
	resp = env.do(t, http.MethodGet, "/api/reports/courier_curators", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGenerateReports(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/reports/restaurant/12", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int64(12), env.generator.ownerID)

	var got models.ReportFile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, models.KindRestaurant, got.Kind)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, int64(12), *got.OwnerID)

	resp = env.do(t, http.MethodPost, "/api/reports/courier_curators", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestGenerateReports_Errors(t *testing.T) {
	env := newTestEnv(t)

	env.generator.err = &reports.StageError{
		Stage: reports.StageBuild,
		Err:   fmt.Errorf("row 0: %w", models.ErrUnmappedStatus),
	}
	resp := env.do(t, http.MethodPost, "/api/reports/courier/3", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	env.generator.err = &reports.StageError{Stage: reports.StageSave, Err: errors.New("insert failed")}
	resp = env.do(t, http.MethodPost, "/api/reports/restaurant_curators", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestDownloadReport(t *testing.T) {
	env := newTestEnv(t)
	env.registry.files[models.KindRestaurantCurators] = []models.ReportFile{
		{ID: 1, Kind: models.KindRestaurantCurators, Filename: "r.xlsx"},
		{ID: 2, Kind: models.KindRestaurantCurators, Filename: "gone.xlsx"},
	}
	require.NoError(t, os.WriteFile(filepath.Join(env.generator.dir, "r.xlsx"), []byte("sheet"), 0o644))

	resp := env.do(t, http.MethodGet, "/api/reports/restaurant_curators/files/r.xlsx", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "sheet", string(body))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "r.xlsx")

	tests := []struct {
		target string
		want   int
	}{
		{"/api/reports/restaurant_curators/files/missing.xlsx", http.StatusNotFound},
		{"/api/reports/restaurant_curators/files/gone.xlsx", http.StatusGone},
		{"/api/reports/restaurant_curators/files/r.csv", http.StatusBadRequest},
		{"/api/reports/payments/files/r.xlsx", http.StatusNotFound},
		{"/api/reports/courier/files/r.xlsx", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp := env.do(t, http.MethodGet, tt.target, "")
		assert.Equal(t, tt.want, resp.StatusCode, tt.target)
	}
}

func TestCourierLocations(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/couriers/locations", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/couriers/4/location", `{"lat":55.75,"lng":37.61}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, locations.Coords{Lat: 55.75, Lng: 37.61}, env.locations.set[4])

	resp = env.do(t, http.MethodPut, "/api/couriers/4/location", `{"lat":95,"lng":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/couriers/4/location", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/couriers/locations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var locs []locations.Location
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&locs))
	require.Len(t, locs, 1)
	assert.Equal(t, int64(4), locs[0].CourierID)

	resp = env.do(t, http.MethodDelete, "/api/couriers/4/location", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []int64{4}, env.locations.removed)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t,
		HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	resp := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var status map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ok", status["postgres"])
	assert.Equal(t, "connection refused", status["redis"])

	resp = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
