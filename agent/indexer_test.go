package agent

import (
	"context"
	"testing"

	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexerSync(t *testing.T) {
	chain := newFakeChain()
	lifecycle(chain)
	idx := newTestIndexer(t, chain)

	var seen []string
	idx.Subscribe(func(ctx context.Context, height int64, event abci.Event) {
		seen = append(seen, event.Type)
	})
	require.NoError(t, idx.Sync(context.Background()))
	assert.Equal(t, int64(6), idx.Height)
	assert.Len(t, seen, 10)

	a, err := idx.getAirline(airlineAddr.Hex())
	require.NoError(t, err)
	assert.True(t, a.Registered)
	assert.True(t, a.Funded)
	assert.Equal(t, uint64(95), a.Funds)
	assert.Equal(t, "Founder Air", a.Name)

	f, err := idx.getFlight(flightKey.Hex())
	require.NoError(t, err)
	assert.Equal(t, uint8(types.StatusLateAirline), f.Status)
	assert.Equal(t, "late_airline", f.StatusName)
	assert.Equal(t, uint64(1300), f.StatusUpdated)
	assert.True(t, f.Credited)

	policies, err := idx.getPoliciesByFlight(flightKey.Hex())
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, insureeAddr.Hex(), policies[0].Insuree)

	reqs, total, err := idx.getRequests(flightKey.Hex(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, reqs, 1)
	rkey := surety.RequestKey(4, airlineAddr, designator, departure).Hex()
	assert.Equal(t, rkey, reqs[0].Key)
	reports, err := idx.getReportsByRequest(rkey)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, oracleAddr.Hex(), reports[0].Oracle)

	credits, err := idx.getCredits(insureeAddr.Hex())
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.Equal(t, uint64(15), credits[0].Amount)

	// nothing new
	require.NoError(t, idx.Sync(context.Background()))
	assert.Equal(t, int64(6), idx.Height)
}

func TestIndexerSeedsGenesisAirline(t *testing.T) {
	chain := newFakeChain()
	chain.answer("/airlines/", nil, []types.Airline{
		{Address: airlineAddr, Name: "Founder Air", IsRegistered: true},
	})
	chain.addBlock(
		types.EncodeEventAirlineFunded(&types.EventAirlineFunded{Airline: airlineAddr, Amount: 100, Funds: 100, Funded: true}),
	)
	idx := newTestIndexer(t, chain)
	require.NoError(t, idx.Sync(context.Background()))

	a, err := idx.getAirline(airlineAddr.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Founder Air", a.Name)
	assert.True(t, a.Registered)
	assert.True(t, a.Funded)
	assert.Equal(t, uint64(100), a.Funds)

	airlines, total, err := idx.getAirlines(0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, airlines, 1)
}

func TestIndexerFundingUnseenAirline(t *testing.T) {
	chain := newFakeChain()
	chain.addBlock(
		types.EncodeEventAirlineFunded(&types.EventAirlineFunded{Airline: airlineAddr, Amount: 100, Funds: 100, Funded: true}),
	)
	idx := newTestIndexer(t, chain)
	require.NoError(t, idx.Sync(context.Background()))

	a, err := idx.getAirline(airlineAddr.Hex())
	require.NoError(t, err)
	assert.True(t, a.Registered)
	assert.True(t, a.Funded)
	assert.Equal(t, uint64(100), a.Funds)
}

func TestIndexerTracksAirlineFunds(t *testing.T) {
	chain := newFakeChain()
	chain.addBlock(
		types.EncodeEventAirlineFunded(&types.EventAirlineFunded{Airline: airlineAddr, Amount: 100, Funds: 100, Funded: true}),
	)
	idx := newTestIndexer(t, chain)
	require.NoError(t, idx.Sync(context.Background()))

	funds := func() uint64 {
		a, err := idx.getAirline(airlineAddr.Hex())
		require.NoError(t, err)
		return a.Funds
	}
	assert.Equal(t, uint64(100), funds())

	chain.addBlock(
		types.EncodeEventInsurancePurchased(&types.EventInsurancePurchased{Key: flightKey, Insuree: insureeAddr, Airline: airlineAddr, Premium: 10, Funds: 110}),
	)
	require.NoError(t, idx.Sync(context.Background()))
	assert.Equal(t, uint64(110), funds())

	chain.addBlock(
		types.EncodeEventCreditIssued(&types.EventCreditIssued{Key: flightKey, Airline: airlineAddr, Policies: 1, Total: 15, Funds: 95}),
	)
	require.NoError(t, idx.Sync(context.Background()))
	assert.Equal(t, uint64(95), funds())

	// a flight without policies touches no airline
	chain.addBlock(
		types.EncodeEventCreditIssued(&types.EventCreditIssued{Key: flightKey}),
	)
	require.NoError(t, idx.Sync(context.Background()))
	assert.Equal(t, uint64(95), funds())
}

func TestIndexerResumesFromSavedHeight(t *testing.T) {
	chain := newFakeChain()
	lifecycle(chain)
	dir := t.TempDir() + "/indexer.db"
	idx, err := NewChainIndexer(cmtlog.NewNopLogger(), dir, chain)
	require.NoError(t, err)
	require.NoError(t, idx.Sync(context.Background()))
	require.NoError(t, idx.Close())

	idx, err = NewChainIndexer(cmtlog.NewNopLogger(), dir, chain)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, int64(6), idx.Height)
}

func TestIndexerSkipsFailedTxs(t *testing.T) {
	chain := newFakeChain()
	chain.blocks[1] = []*abci.ExecTxResult{{
		Code: surety.CodeUnauthorized,
		Events: []abci.Event{
			types.EncodeEventPayout(&types.EventPayout{Insuree: insureeAddr, Amount: 10}),
		},
	}}
	chain.latest = 1
	idx := newTestIndexer(t, chain)
	require.NoError(t, idx.Sync(context.Background()))

	payouts, err := idx.getPayouts(insureeAddr.Hex())
	require.NoError(t, err)
	assert.Empty(t, payouts)
}
