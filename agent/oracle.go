package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/calehh/surety-app/crypto"
	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

var ErrQueryFail = errors.New("abci query fail")

// OracleResponder answers oracle_request events for the indexes its keys
// were assigned, reporting what the StatusSource says.
type OracleResponder struct {
	logger  cmtlog.Logger
	cli     ChainClient
	source  StatusSource
	keys    []*crypto.Key
	chainId string

	mtx     sync.Mutex
	oracles map[common.Address]*types.Oracle
	nonces  map[common.Address]uint64
}

func NewOracleResponder(logger cmtlog.Logger, cli ChainClient, source StatusSource, keys []*crypto.Key) *OracleResponder {
	return &OracleResponder{
		logger:  logger.With("module", "oracle"),
		cli:     cli,
		source:  source,
		keys:    keys,
		oracles: make(map[common.Address]*types.Oracle),
		nonces:  make(map[common.Address]uint64),
	}
}

func (r *OracleResponder) getChainId(ctx context.Context) (string, error) {
	if r.chainId != "" {
		return r.chainId, nil
	}
	st, err := r.cli.Status(ctx)
	if err != nil {
		return "", err
	}
	r.chainId = st.NodeInfo.Network
	return r.chainId, nil
}

func (r *OracleResponder) query(ctx context.Context, path string, data []byte, out any) (bool, error) {
	return queryChain(ctx, r.cli, path, data, out)
}

// queryChain decodes the answer to an ABCI query into out. It reports false
// when the app has nothing at path.
func queryChain(ctx context.Context, cli ChainClient, path string, data []byte, out any) (bool, error) {
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return false, err
	}
	switch res.Response.Code {
	case 0:
	case 1:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s code %d %s", ErrQueryFail, path, res.Response.Code, res.Response.Log)
	}
	return true, json.Unmarshal(res.Response.Value, out)
}

// oracle returns the registration of addr; nil until it registers.
func (r *OracleResponder) oracle(ctx context.Context, addr common.Address) (*types.Oracle, error) {
	if o, ok := r.oracles[addr]; ok {
		return o, nil
	}
	var o types.Oracle
	found, err := r.query(ctx, "/oracles/", addr.Bytes(), &o)
	if err != nil || !found || !o.IsRegistered {
		return nil, err
	}
	r.oracles[addr] = &o
	return &o, nil
}

// nextNonce keeps ahead of the committed nonce for reports sent within a block.
func (r *OracleResponder) nextNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var a state.Account
	if _, err := r.query(ctx, "/accounts/", addr.Bytes(), &a); err != nil {
		return 0, err
	}
	n := a.Nonce
	if local := r.nonces[addr]; local > n {
		n = local
	}
	r.nonces[addr] = n + 1
	return n, nil
}

// HandleEvent is an EventFunc for the indexer.
func (r *OracleResponder) HandleEvent(ctx context.Context, height int64, event abci.Event) {
	if event.Type != types.EventOracleRequestType {
		return
	}
	ev := types.DecodeEventOracleRequest(event)
	if ev == nil {
		r.logger.Error("decode oracle request fail", "height", height)
		return
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for _, k := range r.keys {
		if err := r.respond(ctx, k, ev); err != nil {
			r.logger.Error("respond fail", "oracle", k.Address().Hex(), "index", ev.Index, "flight", ev.Designator, "err", err)
		}
	}
}

func (r *OracleResponder) respond(ctx context.Context, k *crypto.Key, ev *types.EventOracleRequest) error {
	o, err := r.oracle(ctx, k.Address())
	if err != nil {
		return err
	}
	if o == nil || !o.HasIndex(ev.Index) {
		return nil
	}
	code, err := r.source.FlightStatus(ctx, ev.Airline, ev.Designator, ev.Timestamp)
	if err != nil {
		return err
	}
	chainId, err := r.getChainId(ctx)
	if err != nil {
		return err
	}
	nonce, err := r.nextNonce(ctx, k.Address())
	if err != nil {
		return err
	}
	btx := &tx.SuretyTx{
		Version: tx.SuretyTxVersion1,
		Type:    tx.SuretyTxTypeSubmitResponse,
		Nonce:   nonce,
		Tx: &tx.SubmitResponseTx{
			FlightRef: tx.FlightRef{
				Airline:   ev.Airline,
				Flight:    ev.Designator,
				Timestamp: ev.Timestamp,
			},
			Index:  ev.Index,
			Status: code,
		},
	}
	if err = k.SignTx(btx, chainId); err != nil {
		return err
	}
	dat, err := tx.MarshalSuretyTx(btx)
	if err != nil {
		return err
	}
	res, err := r.cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		// the nonce was not consumed
		r.nonces[k.Address()] = nonce
		return err
	}
	if res.Code != 0 {
		r.nonces[k.Address()] = nonce
		return fmt.Errorf("report rejected: code %d %s", res.Code, res.Log)
	}
	r.logger.Info("reported flight status", "oracle", k.Address().Hex(), "flight", ev.Designator, "status", code.String(), "tx", res.Hash.String())
	return nil
}
