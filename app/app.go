package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calehh/surety-app/config"
	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/tx/handler"
	"github.com/calehh/surety-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrMissingAppState = errors.New("genesis app_state is empty")

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &SuretyApp{}

type SuretyApp struct {
	cfg    *config.SuretyAppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	lastBlk  finalizeBlock
	txHdlrs  map[tx.SuretyTxType]handler.TxHandler
	queriers map[string]Querier
	metrics  *Metrics

	st *state.State
}

func NewSuretyApp(cfg *config.SuretyAppConfig, logger cmtlog.Logger) (app *SuretyApp, err error) {
	return NewSuretyAppWithRegisterer(cfg, logger, prometheus.DefaultRegisterer)
}

func NewSuretyAppWithRegisterer(cfg *config.SuretyAppConfig, logger cmtlog.Logger, reg prometheus.Registerer) (app *SuretyApp, err error) {
	logger = logger.With("module", "app")

	dir := cfg.Home + "/data"
	db, err := state.NewStateDB(dir, cfg.KeepVersions, logger)
	if err != nil {
		return nil, err
	}

	app = &SuretyApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		txHdlrs:  make(map[tx.SuretyTxType]handler.TxHandler),
		queriers: make(map[string]Querier),
		metrics:  NewMetrics(reg),
	}
	app.registerTxHandler()
	app.registerQuerier()
	return
}

func (app *SuretyApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
	}
}

func (app *SuretyApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("surety app stopped")
}

func (app *SuretyApp) registerTxHandler() {
	app.txHdlrs = handler.NewTxHandlers(app.logger)
}

func (app *SuretyApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	if len(chain.AppStateBytes) == 0 {
		return nil, ErrMissingAppState
	}
	var gen types.SuretyGenesis
	if err = json.Unmarshal(chain.AppStateBytes, &gen); err != nil {
		return nil, fmt.Errorf("decode app_state: %w", err)
	}
	if err = gen.Validate(state.HashHistoryDepth); err != nil {
		app.logger.Error("InitChain invalid genesis", "err", err)
		return nil, err
	}

	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	st.SetOwner(gen.Owner)
	if err = st.BeginBlock(0, uint64(chain.Time.Unix()), nil); err != nil {
		return nil, err
	}
	if err = st.SetParams(&gen.Params); err != nil {
		return nil, err
	}
	if _, err = st.SetOperating(gen.Owner, true); err != nil {
		return nil, err
	}
	for _, alloc := range gen.Alloc {
		err = st.AddAccount(&state.Account{Address: alloc.Address, Balance: alloc.Balance})
		if err != nil {
			app.logger.Error("InitChain add account fail", "err", err)
			return nil, err
		}
	}
	s, err := handler.NewSurety(st, app.logger)
	if err != nil {
		return nil, err
	}
	if err = s.Airlines.AdmitBootstrap(gen.Founder, gen.FounderName); err != nil {
		app.logger.Error("InitChain admit founder fail", "err", err)
		return nil, err
	}
	st.TakeEvents()

	var h common.Hash
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err = app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chainId", chain.ChainId, "founder", gen.Founder.Hex(), "owner", gen.Owner.Hex())
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *SuretyApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *SuretyApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *SuretyApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *SuretyApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *SuretyApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *SuretyApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *SuretyApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
