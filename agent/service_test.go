package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	gin.SetMode(gin.TestMode)
	chain := newFakeChain()
	lifecycle(chain)
	idx := newTestIndexer(t, chain)
	require.NoError(t, idx.Sync(context.Background()))
	return NewService("127.0.0.1:0", idx, cmtlog.NewNopLogger())
}

func get(t *testing.T, s *Service, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(w, req)
	if w.Code == http.StatusOK && out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func TestServiceAirlines(t *testing.T) {
	s := newTestService(t)

	var list GetAirlinesResponse
	w := get(t, s, "/airlines", &list)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(1), list.Total)
	require.Len(t, list.Airlines, 1)
	assert.Equal(t, airlineAddr.Hex(), list.Airlines[0].Address)
	assert.NotEmpty(t, w.Header().Get(RequestIdHeader))

	var info AirlineInfo
	w = get(t, s, "/airlines/"+airlineAddr.Hex(), &info)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, info.Airline.Funded)
	assert.Empty(t, info.Votes)

	w = get(t, s, "/airlines/"+insureeAddr.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = get(t, s, "/airlines/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = get(t, s, "/airlines?page_size=1000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServiceFlights(t *testing.T) {
	s := newTestService(t)

	var list GetFlightsResponse
	w := get(t, s, "/flights?airline="+airlineAddr.Hex(), &list)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, list.Flights, 1)
	assert.Equal(t, flightKey.Hex(), list.Flights[0].Key)

	var policies GetPoliciesResponse
	w = get(t, s, "/flights/"+flightKey.Hex()+"/policies", &policies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, policies.Flight.Credited)
	require.Len(t, policies.Policies, 1)
	assert.Equal(t, uint64(10), policies.Policies[0].Premium)

	w = get(t, s, "/flights/0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = get(t, s, "/flights/0x"+"00000000000000000000000000000000000000000000000000000000000000ff", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServiceRequests(t *testing.T) {
	s := newTestService(t)

	var list GetRequestsResponse
	w := get(t, s, "/requests?flight="+flightKey.Hex(), &list)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, list.Requests, 1)
	assert.Equal(t, uint8(4), list.Requests[0].Request.Index)
	require.Len(t, list.Requests[0].Reports, 1)
}

func TestServiceCredits(t *testing.T) {
	s := newTestService(t)

	var info CreditsInfo
	w := get(t, s, "/insurees/"+insureeAddr.Hex()+"/credits", &info)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(15), info.Credited)
	assert.Equal(t, uint64(10), info.Paid)
	assert.Equal(t, uint64(5), info.Balance)
	assert.Len(t, info.Credits, 1)
	assert.Len(t, info.Payouts, 1)
}

func TestServiceKeepsCallerRequestId(t *testing.T) {
	s := newTestService(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/airlines", nil)
	req.Header.Set(RequestIdHeader, "abc-123")
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIdHeader))
}
