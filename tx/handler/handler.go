package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ResponseCheckTx, err error)
	NewContext(ctx context.Context)
	Prepare(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ExecTxResult, err error)
	Process(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ExecTxResult, err error)
}

func NewTxHandlers(logger cmtlog.Logger) map[tx.SuretyTxType]TxHandler {
	return map[tx.SuretyTxType]TxHandler{
		tx.SuretyTxTypeSetOperating:    NewSetOperatingTxHandler(logger),
		tx.SuretyTxTypeRegisterAirline: NewRegisterAirlineTxHandler(logger),
		tx.SuretyTxTypeFundAirline:     NewFundAirlineTxHandler(logger),
		tx.SuretyTxTypeRegisterFlight:  NewRegisterFlightTxHandler(logger),
		tx.SuretyTxTypeBuyInsurance:    NewBuyInsuranceTxHandler(logger),
		tx.SuretyTxTypeClaimCredit:     NewClaimCreditTxHandler(logger),
		tx.SuretyTxTypeWithdraw:        NewWithdrawTxHandler(logger),
		tx.SuretyTxTypeRegisterOracle:  NewRegisterOracleTxHandler(logger),
		tx.SuretyTxTypeRequestStatus:   NewRequestStatusTxHandler(logger),
		tx.SuretyTxTypeSubmitResponse:  NewSubmitResponseTxHandler(logger),
	}
}

// NewSurety binds the insurance rules to a state branch.
func NewSurety(st *state.State, logger cmtlog.Logger) (*surety.Surety, error) {
	params, err := st.Params()
	if err != nil {
		return nil, err
	}
	return surety.New(st, st, *params, logger), nil
}

// opFunc runs one operation; a non-nil result is returned as JSON in the
// tx result data.
type opFunc[T any] func(st *state.State, s *surety.Surety, btx *tx.SuretyTx, ptx *T) (result any, err error)

type opHandler[T any] struct {
	logger  cmtlog.Logger
	op      opFunc[T]
	payable bool
}

func newOpHandler[T any](logger cmtlog.Logger, module string, op opFunc[T]) *opHandler[T] {
	return &opHandler[T]{
		logger: logger.With("module", module),
		op:     op,
	}
}

// newPayableOpHandler is for operations that take the escrowed tx value as
// their amount. Every other operation rejects a non-zero value so the
// aborted branch refunds it.
func newPayableOpHandler[T any](logger cmtlog.Logger, module string, op opFunc[T]) *opHandler[T] {
	h := newOpHandler(logger, module, op)
	h.payable = true
	return h
}

func rejectValue(btx *tx.SuretyTx) error {
	if btx.Value != 0 {
		return fmt.Errorf("%w: %s takes no value, got %d", surety.ErrInsufficientValue, btx.Type, btx.Value)
	}
	return nil
}

func (h *opHandler[T]) Check(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: surety.CodeOK}
	r, err1 := h.handle(ctx, st, btx)
	if err1 != nil {
		h.logger.Debug("CheckTx fail", "from", btx.From.Hex(), "err", err1)
		res.Code = surety.Code(err1)
		res.Log = err1.Error()
		return
	}
	res.Data = r.Data
	return
}

func (h *opHandler[T]) NewContext(ctx context.Context) {}

func (h *opHandler[T]) handle(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ExecTxResult, err error) {
	ptx, ok := btx.Tx.(*T)
	if !ok {
		return nil, tx.ErrUnmatchedTxType
	}
	if !h.payable {
		if err = rejectValue(btx); err != nil {
			return nil, err
		}
	}
	s, err := NewSurety(st, h.logger)
	if err != nil {
		return nil, err
	}
	result, err := h.op(st, s, btx, ptx)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{Code: surety.CodeOK, Events: st.TakeEvents()}
	if result != nil {
		res.Data, err = json.Marshal(result)
		if err != nil {
			return nil, err
		}
	}
	return
}

func (h *opHandler[T]) Prepare(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}

func (h *opHandler[T]) Process(ctx context.Context, st *state.State, btx *tx.SuretyTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx)
}
