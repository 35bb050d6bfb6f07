package tx

import (
	"errors"
)

type SuretyTxType uint8

const (
	SuretyTxTypeUnknown         SuretyTxType = 0
	SuretyTxTypeSetOperating    SuretyTxType = 1
	SuretyTxTypeRegisterAirline SuretyTxType = 2
	SuretyTxTypeFundAirline     SuretyTxType = 3
	SuretyTxTypeRegisterFlight  SuretyTxType = 4
	SuretyTxTypeBuyInsurance    SuretyTxType = 5
	SuretyTxTypeClaimCredit     SuretyTxType = 6
	SuretyTxTypeWithdraw        SuretyTxType = 7
	SuretyTxTypeRegisterOracle  SuretyTxType = 8
	SuretyTxTypeRequestStatus   SuretyTxType = 9
	SuretyTxTypeSubmitResponse  SuretyTxType = 10
)

var txTypeNames = map[SuretyTxType]string{
	SuretyTxTypeSetOperating:    "set_operating",
	SuretyTxTypeRegisterAirline: "register_airline",
	SuretyTxTypeFundAirline:     "fund_airline",
	SuretyTxTypeRegisterFlight:  "register_flight",
	SuretyTxTypeBuyInsurance:    "buy_insurance",
	SuretyTxTypeClaimCredit:     "claim_credit",
	SuretyTxTypeWithdraw:        "withdraw",
	SuretyTxTypeRegisterOracle:  "register_oracle",
	SuretyTxTypeRequestStatus:   "request_status",
	SuretyTxTypeSubmitResponse:  "submit_response",
}

func (t SuretyTxType) String() string {
	if n, ok := txTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

const (
	SuretyTxVersion0 uint8 = 0
	SuretyTxVersion1 uint8 = 1
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnmatchedTxType      = errors.New("unmatched tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrTxSigMissing         = errors.New("tx signature missing")
	ErrTxSigMalformed       = errors.New("tx signature malformed")
)
