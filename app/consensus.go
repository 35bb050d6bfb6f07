package app

import (
	"context"
	"errors"

	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrNoFinalizedState    = errors.New("commit without finalized block")
)

func (app *SuretyApp) getState() (st *state.State) {
	st = app.db.NewState()
	return
}

func (app *SuretyApp) newContext(ctx context.Context) {
	for _, h := range app.txHdlrs {
		h.NewContext(ctx)
	}
}

func (app *SuretyApp) parseTx(txDat []byte, st *state.State, allowNonceGap bool) (btx *tx.SuretyTx, err error) {
	btx, err = tx.UnmarshalSuretyTx(txDat)
	if err != nil {
		return
	}
	if btx != nil {
		_, err = st.Verify(btx, allowNonceGap)
	}
	return
}

// execTx runs one transaction on a branch of st. It returns the branch on
// success; on failure st is returned untouched. verified reports whether the
// envelope was sound, in which case the sender's nonce should still be spent.
func (app *SuretyApp) execTx(ctx context.Context, st *state.State, stx []byte, finalize bool) (next *state.State, btx *tx.SuretyTx, res *abcitypes.ExecTxResult, verified bool, err error) {
	next = st
	btx, err = app.parseTx(stx, st, false)
	if err != nil {
		res = &abcitypes.ExecTxResult{Code: surety.CodeInternal, Log: err.Error()}
		return
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		err = tx.ErrUnsupportedTxType
		res = &abcitypes.ExecTxResult{Code: surety.CodeInternal, Log: err.Error()}
		return
	}
	verified = true
	stTmp := st.Clone()
	if err = stTmp.Prepay(btx); err != nil {
		res = &abcitypes.ExecTxResult{Code: surety.CodeInsufficientValue, Log: err.Error()}
		return
	}
	if finalize {
		res, err = h.Process(ctx, stTmp, btx)
	} else {
		res, err = h.Prepare(ctx, stTmp, btx)
	}
	if err != nil {
		res = &abcitypes.ExecTxResult{Code: surety.Code(err), Log: err.Error()}
		return
	}
	if res == nil {
		err = ErrUnexpectedTxProcess
		res = &abcitypes.ExecTxResult{Code: surety.CodeInternal, Log: err.Error()}
		return
	}
	next = stTmp
	return
}

func (app *SuretyApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: surety.CodeOK}
	st := app.db.State().Clone()
	btx, err := app.parseTx(check.Tx, st, true)
	if err != nil {
		app.logger.Info("parse tx fail", "err", err)
		res.Code = surety.CodeInternal
		res.Log = err.Error()
		err = nil
		return
	}
	app.logger.Debug("check tx", "type", btx.Type.String(), "from", btx.From.Hex())
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.logger.Error("unsupported tx", "type", btx.Type)
		res.Code = surety.CodeInternal
		res.Log = "unsupported tx"
		return
	}
	if err = st.Prepay(btx); err != nil {
		res.Code = surety.CodeInsufficientValue
		res.Log = err.Error()
		err = nil
		return
	}
	res, err = h.Check(ctx, st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{Code: surety.CodeInternal, Log: err.Error()}
		err = nil
	}
	return
}

func (app *SuretyApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	st := app.getState()
	if err = st.BeginBlock(uint64(proposal.Height), uint64(proposal.Time.Unix()), nil); err != nil {
		return nil, err
	}
	app.newContext(ctx)
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		next, btx, _, _, err := app.execTx(ctx, st, stx, false)
		if err != nil {
			typ := "unknown"
			if btx != nil {
				typ = btx.Type.String()
			}
			app.logger.Info("prepare tx dropped", "type", typ, "err", err)
			continue
		}
		st = next
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *SuretyApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	app.logger.Info("ProcessProposal", "height", proposal.Height)
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	if len(proposal.Txs) == 0 {
		res.Status = abcitypes.ResponseProcessProposal_ACCEPT
		return res, nil
	}
	st := app.getState()
	if err = st.BeginBlock(uint64(proposal.Height), uint64(proposal.Time.Unix()), nil); err != nil {
		return nil, err
	}
	app.newContext(ctx)
	for _, stx := range proposal.Txs {
		next, _, _, _, err := app.execTx(ctx, st, stx, false)
		if err != nil {
			app.logger.Error("process fail", "err", err)
			return res, nil
		}
		st = next
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	app.logger.Info("proposal accepted", "height", proposal.Height)
	return res, nil
}

func (app *SuretyApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	st := app.getState()
	if err := st.BeginBlock(uint64(req.Height), uint64(req.Time.Unix()), req.Hash); err != nil {
		return nil, err
	}
	app.newContext(ctx)
	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		next, btx, result, verified, err := app.execTx(ctx, st, stx, true)
		results[i] = result
		typ := "unknown"
		if btx != nil {
			typ = btx.Type.String()
		}
		if err != nil {
			app.logger.Error("finalize tx fail", "type", typ, "err", err)
			app.metrics.Txs.WithLabelValues(typ, "fail").Inc()
			if verified {
				if err := st.BumpNonce(btx.From); err != nil {
					return nil, err
				}
			}
			continue
		}
		st = next
		app.metrics.Txs.WithLabelValues(typ, "ok").Inc()
		for _, ev := range result.Events {
			if ev.Type != types.EventFlightStatusType {
				continue
			}
			if fs := types.DecodeEventFlightStatus(ev); fs != nil {
				app.metrics.FlightStatuses.WithLabelValues(fs.Status.String()).Inc()
			}
		}
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	app.metrics.Height.Set(float64(req.Height))
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: results,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *SuretyApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return nil, ErrNoFinalizedState
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.st = nil
	app.logger.Info("Commit", "height", app.lastBlk.Height)
	return &abcitypes.ResponseCommit{}, nil
}
