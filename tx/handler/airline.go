package handler

import (
	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// RegisterAirlineResult reports admission progress to the caller.
type RegisterAirlineResult struct {
	Success bool   `json:"success"`
	Votes   uint64 `json:"votes"`
}

func NewRegisterAirlineTxHandler(logger cmtlog.Logger) TxHandler {
	return newOpHandler(logger, "registerAirlineTx", registerAirline)
}

func registerAirline(st *state.State, s *surety.Surety, btx *tx.SuretyTx, rtx *tx.RegisterAirlineTx) (any, error) {
	ok, votes, err := s.Airlines.RegisterAirline(rtx.Airline, rtx.Name, btx.From)
	if err != nil {
		return nil, err
	}
	return &RegisterAirlineResult{Success: ok, Votes: votes}, nil
}

func NewFundAirlineTxHandler(logger cmtlog.Logger) TxHandler {
	return newPayableOpHandler(logger, "fundAirlineTx", fundAirline)
}

func fundAirline(st *state.State, s *surety.Surety, btx *tx.SuretyTx, ftx *tx.FundAirlineTx) (any, error) {
	return nil, s.Airlines.Fund(ftx.Airline, btx.Value, btx.From)
}

func NewRegisterFlightTxHandler(logger cmtlog.Logger) TxHandler {
	return newOpHandler(logger, "registerFlightTx", registerFlight)
}

func registerFlight(st *state.State, s *surety.Surety, btx *tx.SuretyTx, ftx *tx.RegisterFlightTx) (any, error) {
	key, err := s.Flights.RegisterFlight(ftx.Airline, ftx.Flight, ftx.Timestamp, btx.From)
	if err != nil {
		return nil, err
	}
	return map[string]string{"key": key.Hex()}, nil
}
