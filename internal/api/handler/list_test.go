package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/crashbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockLister struct {
	incidents *models.Incidents
	err       error
}

func (m *mockLister) CurrentIncidents(_ context.Context) (*models.Incidents, error) {
	return m.incidents, m.err
}

type mockCounter struct {
	paths []string
}

func (m *mockCounter) IncListRequests(_ context.Context, path string) {
	m.paths = append(m.paths, path)
}

// --- tests ---

func TestListHandler_Empty(t *testing.T) {
	counter := &mockCounter{}
	h := NewListHandler(&mockLister{incidents: &models.Incidents{
		Open:   []models.IncidentView{},
		Closed: []models.IncidentView{},
	}}, counter)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/list", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"open":[],"closed":[]}`, rec.Body.String())
	assert.Equal(t, []string{"/list"}, counter.paths)
}

func TestListHandler_BodyShape(t *testing.T) {
	reported := time.Date(2022, 7, 19, 10, 0, 0, 0, time.UTC)
	rca := "https://rca.example/9"
	h := NewListHandler(&mockLister{incidents: &models.Incidents{
		Open: []models.IncidentView{{
			ID: 1, Status: models.StatusOpen, Severity: models.Sev1, Title: "db down",
			Point: "Pat Point", Contact: "Not assigned", ModifiedBy: "Mo", ReportedAt: reported,
		}},
		Closed: []models.IncidentView{{
			ID: 9, RevisionNumber: 3, Status: models.StatusClosed, Severity: models.Sev3,
			ClosedAt: &reported, RCALink: &rca,
		}},
	}}, &mockCounter{})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/list", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["open"], 1)
	require.Len(t, body["closed"], 1)

	open := body["open"][0]
	assert.Equal(t, float64(1), open["id"])
	assert.Equal(t, "sev-1", open["severity"])
	assert.Equal(t, "Pat Point", open["point"])
	assert.Equal(t, "Not assigned", open["contact"])
	assert.Nil(t, open["closed_at"])
	assert.Nil(t, open["rca_link"])

	closed := body["closed"][0]
	assert.Equal(t, float64(3), closed["revision_number"])
	assert.Equal(t, "https://rca.example/9", closed["rca_link"])
}

func TestListHandler_ProjectorError(t *testing.T) {
	counter := &mockCounter{}
	h := NewListHandler(&mockLister{err: errors.New("connection refused")}, counter)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/list", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	// Counted even when the listing fails.
	assert.Len(t, counter.paths, 1)
}

func TestPing(t *testing.T) {
	rec := httptest.NewRecorder()
	Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}
