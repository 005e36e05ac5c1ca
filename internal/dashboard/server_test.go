package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halpertj/unwinder/internal/mock"
	"github.com/halpertj/unwinder/internal/models"
)

type stubEngine struct {
	snap *models.PortfolioSnapshot
	recs []models.CloseOpportunity
}

func (s *stubEngine) Snapshot() *models.PortfolioSnapshot { return s.snap }

func (s *stubEngine) GetRecommendations(_ bool, _ []int64) []models.CloseOpportunity {
	return s.recs
}

func newTestServer(authToken string, engine EngineView) *Server {
	sim := mock.NewSimBroker("XAUUSD", nil)
	return NewServer(Config{Port: 0, AuthToken: authToken}, engine, sim, logrus.New())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer("", &stubEngine{snap: &models.PortfolioSnapshot{}})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSnapshotEndpoint(t *testing.T) {
	snap := &models.PortfolioSnapshot{
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Positions:   []models.Position{{ID: 7, Side: models.SideBuy, Volume: 0.1}},
		BuyVolume:   0.1,
		HealthScore: 0.9,
	}
	s := newTestServer("", &stubEngine{snap: snap})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.PortfolioSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Positions, 1)
	assert.Equal(t, int64(7), got.Positions[0].ID)
	assert.Equal(t, 0.9, got.HealthScore)
}

func TestRecommendationsEndpointNeverNull(t *testing.T) {
	s := newTestServer("", &stubEngine{snap: &models.PortfolioSnapshot{}})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recommendations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAccountEndpoint(t *testing.T) {
	s := newTestServer("", &stubEngine{snap: &models.PortfolioSnapshot{}})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/account", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 10000.0, got["balance"])
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer("hunter2", &stubEngine{snap: &models.PortfolioSnapshot{}})

	// Health is exempt.
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// API without token is rejected.
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Header token accepted.
	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	req.Header.Set("X-Auth-Token", "hunter2")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Query token accepted.
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot?token=hunter2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
