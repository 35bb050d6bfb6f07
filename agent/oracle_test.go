package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calehh/surety-app/crypto"
	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestEvent(index uint8) *types.EventOracleRequest {
	return &types.EventOracleRequest{
		Index:      index,
		Airline:    airlineAddr,
		Designator: designator,
		Timestamp:  departure,
		Requester:  insureeAddr,
	}
}

func TestResponderAnswersOwnedIndex(t *testing.T) {
	chain := newFakeChain()
	owner, other := newOracleKey(t), newOracleKey(t)
	registerOracle(chain, owner, 7, [3]uint8{1, 4, 9})
	registerOracle(chain, other, 0, [3]uint8{0, 2, 3})
	unregistered := newOracleKey(t)

	source := NewMockStatusSource(types.StatusOnTime)
	source.Set(airlineAddr, designator, departure, types.StatusLateAirline)
	r := NewOracleResponder(cmtlog.NewNopLogger(), chain, source, []*crypto.Key{owner, other, unregistered})

	ctx := context.Background()
	r.HandleEvent(ctx, 3, types.EncodeEventOracleRequest(requestEvent(4)))
	r.HandleEvent(ctx, 3, types.EncodeEventOracleRequest(requestEvent(9)))
	// not a request
	r.HandleEvent(ctx, 3, types.EncodeEventPayout(&types.EventPayout{Insuree: insureeAddr, Amount: 1}))

	sent := chain.sent(t)
	require.Len(t, sent, 2)
	for i, btx := range sent {
		assert.Equal(t, owner.Address(), btx.From)
		assert.Equal(t, tx.SuretyTxTypeSubmitResponse, btx.Type)
		assert.Equal(t, uint64(7+i), btx.Nonce)
		sender, err := btx.Sender(testChainId)
		require.NoError(t, err)
		assert.Equal(t, owner.Address(), sender)
		stx := btx.Tx.(*tx.SubmitResponseTx)
		assert.Equal(t, types.StatusLateAirline, stx.Status)
		assert.Equal(t, designator, stx.Flight)
	}
	assert.Equal(t, uint8(4), sent[0].Tx.(*tx.SubmitResponseTx).Index)
	assert.Equal(t, uint8(9), sent[1].Tx.(*tx.SubmitResponseTx).Index)
}

func TestResponderReusesNonceOnRejection(t *testing.T) {
	chain := newFakeChain()
	chain.txCode = 1
	k := newOracleKey(t)
	registerOracle(chain, k, 2, [3]uint8{1, 4, 9})
	r := NewOracleResponder(cmtlog.NewNopLogger(), chain, NewMockStatusSource(types.StatusOnTime), []*crypto.Key{k})

	ctx := context.Background()
	r.HandleEvent(ctx, 3, types.EncodeEventOracleRequest(requestEvent(1)))
	r.HandleEvent(ctx, 4, types.EncodeEventOracleRequest(requestEvent(4)))
	sent := chain.sent(t)
	require.Len(t, sent, 2)
	assert.Equal(t, uint64(2), sent[0].Nonce)
	assert.Equal(t, uint64(2), sent[1].Nonce)
}

func TestResponderSkipsUnknownStatus(t *testing.T) {
	chain := newFakeChain()
	k := newOracleKey(t)
	registerOracle(chain, k, 0, [3]uint8{1, 4, 9})
	r := NewOracleResponder(cmtlog.NewNopLogger(), chain, NewMockStatusSource(types.StatusUnknown), []*crypto.Key{k})
	r.HandleEvent(context.Background(), 3, types.EncodeEventOracleRequest(requestEvent(4)))
	assert.Empty(t, chain.sent(t))
}

func TestHTTPStatusSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/flights/" + airlineAddr.Hex() + "/SU100/5000":
			json.NewEncoder(w).Encode(map[string]string{"status": "late_weather"})
		case "/flights/" + airlineAddr.Hex() + "/SU200/5000":
			w.Write([]byte(`{"status": 20}`))
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()
	src := NewHTTPStatusSource(srv.URL, cmtlog.NewNopLogger())
	ctx := context.Background()

	code, err := src.FlightStatus(ctx, airlineAddr, "SU100", departure)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLateWeather, code)

	code, err = src.FlightStatus(ctx, airlineAddr, "SU200", departure)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLateAirline, code)

	_, err = src.FlightStatus(ctx, airlineAddr, "SU300", departure)
	assert.ErrorIs(t, err, ErrStatusUnavailable)
}
