package handler

import (
	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

func NewRegisterOracleTxHandler(logger cmtlog.Logger) TxHandler {
	return newPayableOpHandler(logger, "registerOracleTx", registerOracle)
}

func registerOracle(st *state.State, s *surety.Surety, btx *tx.SuretyTx, _ *tx.RegisterOracleTx) (any, error) {
	o, err := s.Oracles.RegisterOracle(btx.From, btx.Value)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func NewRequestStatusTxHandler(logger cmtlog.Logger) TxHandler {
	return newOpHandler(logger, "requestStatusTx", requestStatus)
}

func requestStatus(st *state.State, s *surety.Surety, btx *tx.SuretyTx, rtx *tx.RequestStatusTx) (any, error) {
	index, err := s.Oracles.RequestStatus(rtx.Airline, rtx.Flight, rtx.Timestamp, btx.From)
	if err != nil {
		return nil, err
	}
	return map[string]uint8{"index": index}, nil
}

func NewSubmitResponseTxHandler(logger cmtlog.Logger) TxHandler {
	return newOpHandler(logger, "submitResponseTx", submitResponse)
}

func submitResponse(st *state.State, s *surety.Surety, btx *tx.SuretyTx, rtx *tx.SubmitResponseTx) (any, error) {
	finalized, err := s.Oracles.SubmitResponse(btx.From, rtx.Index, rtx.Airline, rtx.Flight, rtx.Timestamp, rtx.Status)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"finalized": finalized}, nil
}
