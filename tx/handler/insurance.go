package handler

import (
	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

func NewBuyInsuranceTxHandler(logger cmtlog.Logger) TxHandler {
	return newPayableOpHandler(logger, "buyInsuranceTx", buyInsurance)
}

// The premium is the tx value, already moved into escrow.
func buyInsurance(st *state.State, s *surety.Surety, btx *tx.SuretyTx, itx *tx.BuyInsuranceTx) (any, error) {
	key, err := s.Insurance.BuyInsurance(btx.From, itx.Airline, itx.Flight, itx.Timestamp, btx.Value)
	if err != nil {
		return nil, err
	}
	return map[string]string{"key": key.Hex()}, nil
}

func NewClaimCreditTxHandler(logger cmtlog.Logger) TxHandler {
	return newOpHandler(logger, "claimCreditTx", claimCredit)
}

func claimCredit(st *state.State, s *surety.Surety, btx *tx.SuretyTx, ctt *tx.ClaimCreditTx) (any, error) {
	_, err := s.Insurance.ClaimCredit(ctt.Airline, ctt.Flight, ctt.Timestamp)
	return nil, err
}

func NewWithdrawTxHandler(logger cmtlog.Logger) TxHandler {
	return newOpHandler(logger, "withdrawTx", withdraw)
}

func withdraw(st *state.State, s *surety.Surety, btx *tx.SuretyTx, _ *tx.WithdrawTx) (any, error) {
	amount, err := s.Insurance.Withdraw(btx.From)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"amount": amount}, nil
}
