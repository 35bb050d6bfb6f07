package handler

import (
	"context"
	"errors"

	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

var ErrOneSwitchInOneBlock = errors.New("operating switch already flipped in this block")

// SetOperatingTxHandler lets the owner pause or resume the application, at
// most once per block.
type SetOperatingTxHandler struct {
	logger cmtlog.Logger

	switched bool
}

func NewSetOperatingTxHandler(logger cmtlog.Logger) (h *SetOperatingTxHandler) {
	logger = logger.With("module", "setOperatingTx")
	h = &SetOperatingTxHandler{
		logger: logger,
	}
	return
}

func (h *SetOperatingTxHandler) Check(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: surety.CodeOK}
	otx, ok := btx.Tx.(*tx.SetOperatingTx)
	if !ok {
		err = tx.ErrUnmatchedTxType
		return
	}
	if err1 := rejectValue(btx); err1 != nil {
		res.Code = surety.Code(err1)
		res.Log = err1.Error()
		return
	}
	if _, err1 := st.SetOperating(btx.From, otx.Operational); err1 != nil {
		h.logger.Info("CheckTx SetOperatingTx fail", "err", err1)
		res.Code = surety.CodeUnauthorized
		res.Log = err1.Error()
	}
	return
}

func (h *SetOperatingTxHandler) NewContext(ctx context.Context) {
	h.switched = false
}

func (h *SetOperatingTxHandler) handle(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ExecTxResult, err error) {
	if h.switched {
		return nil, ErrOneSwitchInOneBlock
	}
	otx, ok := btx.Tx.(*tx.SetOperatingTx)
	if !ok {
		return nil, tx.ErrUnmatchedTxType
	}
	if err = rejectValue(btx); err != nil {
		return nil, err
	}
	event, err := st.SetOperating(btx.From, otx.Operational)
	if err != nil {
		return nil, errors.Join(surety.ErrUnauthorized, err)
	}
	h.switched = true
	h.logger.Info("operating switched", "operational", otx.Operational)
	res = &abcitypes.ExecTxResult{}
	res.Events = []abcitypes.Event{types.EncodeEventOperating(event)}
	return
}

func (h *SetOperatingTxHandler) Prepare(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *SetOperatingTxHandler) Process(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
