package agent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/calehh/surety-app/crypto"
	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/p2p"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const testChainId = "surety-test"

// fakeChain serves canned block results and ABCI query answers, and
// records broadcast txs.
type fakeChain struct {
	mtx       sync.Mutex
	blocks    map[int64][]*abci.ExecTxResult
	latest    int64
	queries   map[string]any
	broadcast [][]byte
	txCode    uint32
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		blocks:  make(map[int64][]*abci.ExecTxResult),
		queries: make(map[string]any),
	}
}

func (f *fakeChain) addBlock(events ...abci.Event) int64 {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.latest++
	f.blocks[f.latest] = []*abci.ExecTxResult{{Code: surety.CodeOK, Events: events}}
	return f.latest
}

func (f *fakeChain) answer(path string, data []byte, v any) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.queries[path+string(data)] = v
}

func (f *fakeChain) Status(ctx context.Context) (*ctypes.ResultStatus, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return &ctypes.ResultStatus{
		NodeInfo: p2p.DefaultNodeInfo{Network: testChainId},
		SyncInfo: ctypes.SyncInfo{LatestBlockHeight: f.latest},
	}, nil
}

func (f *fakeChain) BlockResults(ctx context.Context, height *int64) (*ctypes.ResultBlockResults, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return &ctypes.ResultBlockResults{Height: *height, TxsResults: f.blocks[*height]}, nil
}

func (f *fakeChain) ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*ctypes.ResultABCIQuery, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	v, ok := f.queries[path+string(data)]
	if !ok {
		return &ctypes.ResultABCIQuery{Response: abci.ResponseQuery{Code: 1, Log: "not found"}}, nil
	}
	dat, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &ctypes.ResultABCIQuery{Response: abci.ResponseQuery{Value: dat}}, nil
}

func (f *fakeChain) BroadcastTxSync(ctx context.Context, t cmttypes.Tx) (*ctypes.ResultBroadcastTx, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.broadcast = append(f.broadcast, t)
	return &ctypes.ResultBroadcastTx{Code: f.txCode, Hash: t.Hash()}, nil
}

func (f *fakeChain) sent(t *testing.T) []*tx.SuretyTx {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	out := make([]*tx.SuretyTx, 0, len(f.broadcast))
	for _, dat := range f.broadcast {
		btx, err := tx.UnmarshalSuretyTx(dat)
		require.NoError(t, err)
		out = append(out, btx)
	}
	return out
}

func newTestIndexer(t *testing.T, chain *fakeChain) *ChainIndexer {
	t.Helper()
	idx, err := NewChainIndexer(cmtlog.NewNopLogger(), filepath.Join(t.TempDir(), "indexer.db"), chain)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

var (
	airlineAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	insureeAddr = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	oracleAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	departure   = uint64(5000)
	designator  = "SU100"
	flightKey   = surety.FlightKey(airlineAddr, designator, departure)
)

// lifecycle is the event stream of one insured, delayed and paid flight of
// the genesis airline, which is admitted without an event.
func lifecycle(chain *fakeChain) {
	chain.answer("/airlines/", nil, []types.Airline{
		{Address: airlineAddr, Name: "Founder Air", IsRegistered: true, IsFunded: true, Funds: 95},
	})
	chain.addBlock(
		types.EncodeEventAirlineFunded(&types.EventAirlineFunded{Airline: airlineAddr, Amount: 100, Funds: 100, Funded: true}),
		types.EncodeEventFlightRegistered(&types.EventFlightRegistered{Key: flightKey, Airline: airlineAddr, Designator: designator, Timestamp: departure}),
		types.EncodeEventOracleRegistered(&types.EventOracleRegistered{Oracle: oracleAddr, Indexes: [3]uint8{0, 4, 7}}),
	)
	chain.addBlock(
		types.EncodeEventInsurancePurchased(&types.EventInsurancePurchased{Key: flightKey, Insuree: insureeAddr, Airline: airlineAddr, Premium: 10, Funds: 110}),
		types.EncodeEventOracleRequest(&types.EventOracleRequest{Index: 4, Airline: airlineAddr, Designator: designator, Timestamp: departure, Requester: insureeAddr}),
	)
	chain.addBlock(
		types.EncodeEventOracleReport(&types.EventOracleReport{Oracle: oracleAddr, Index: 4, Airline: airlineAddr, Designator: designator, Timestamp: departure, Status: types.StatusLateAirline, Count: 1}),
		types.EncodeEventFlightStatus(&types.EventFlightStatus{Key: flightKey, Airline: airlineAddr, Designator: designator, Timestamp: departure, Status: types.StatusLateAirline, UpdatedAt: 1300}),
	)
	chain.addBlock(
		types.EncodeEventCreditAvailable(&types.EventCreditAvailable{Key: flightKey, Insuree: insureeAddr, Amount: 15, Balance: 15}),
		types.EncodeEventCreditIssued(&types.EventCreditIssued{Key: flightKey, Airline: airlineAddr, Policies: 1, Total: 15, Funds: 95}),
	)
	chain.addBlock(
		types.EncodeEventPayout(&types.EventPayout{Insuree: insureeAddr, Amount: 10}),
	)
}

func newOracleKey(t *testing.T) *crypto.Key {
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	return k
}

func registerOracle(chain *fakeChain, k *crypto.Key, nonce uint64, indexes [3]uint8) {
	chain.answer("/oracles/", k.Address().Bytes(), &types.Oracle{Address: k.Address(), IsRegistered: true, Indexes: indexes})
	chain.answer("/accounts/", k.Address().Bytes(), &state.Account{Address: k.Address(), Nonce: nonce})
}
