package tx

import (
	"crypto/ecdsa"
	"encoding/json"

	"github.com/calehh/surety-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type SuretyTx struct {
	Version uint8          `json:"version"`
	Type    SuretyTxType   `json:"type"`
	Nonce   uint64         `json:"nonce"`
	From    common.Address `json:"from"`
	Value   uint64         `json:"value"`
	Tx      any            `json:"tx"`
	Sig     [][]byte       `json:"sig"`
}

type SetOperatingTx struct {
	Operational bool `json:"operational"`
}

type RegisterAirlineTx struct {
	Airline common.Address `json:"airline"`
	Name    string         `json:"name"`
}

type FundAirlineTx struct {
	Airline common.Address `json:"airline"`
}

// FlightRef identifies a flight by its natural key.
type FlightRef struct {
	Airline   common.Address `json:"airline"`
	Flight    string         `json:"flight"`
	Timestamp uint64         `json:"timestamp"`
}

type RegisterFlightTx struct {
	FlightRef
}

type BuyInsuranceTx struct {
	FlightRef
}

type ClaimCreditTx struct {
	FlightRef
}

type WithdrawTx struct{}

type RegisterOracleTx struct{}

type RequestStatusTx struct {
	FlightRef
}

type SubmitResponseTx struct {
	FlightRef
	Index  uint8            `json:"index"`
	Status types.StatusCode `json:"status"`
}

type suretyTxTmpl[Tx any] struct {
	Version uint8          `json:"version"`
	Type    SuretyTxType   `json:"type"`
	Nonce   uint64         `json:"nonce"`
	From    common.Address `json:"from"`
	Value   uint64         `json:"value"`
	Tx      Tx             `json:"tx"`
	Sig     [][]byte       `json:"sig"`
}

// SigData is the JSON encoding of the tx with the signature slot replaced by ext.
func (tx *SuretyTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

func (tx *SuretyTx) SigHash(chainId string) (h common.Hash, err error) {
	dat, err := tx.SigData([]byte(chainId))
	if err != nil {
		return
	}
	h = crypto.Keccak256Hash(dat)
	return
}

func (tx *SuretyTx) Sign(key *ecdsa.PrivateKey, chainId string) error {
	h, err := tx.SigHash(chainId)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(h[:], key)
	if err != nil {
		return err
	}
	tx.Sig = [][]byte{sig}
	return nil
}

// Sender recovers the address that signed the tx.
func (tx *SuretyTx) Sender(chainId string) (addr common.Address, err error) {
	if len(tx.Sig) != 1 {
		err = ErrTxSigMissing
		return
	}
	if len(tx.Sig[0]) != crypto.SignatureLength {
		err = ErrTxSigMalformed
		return
	}
	h, err := tx.SigHash(chainId)
	if err != nil {
		return
	}
	pub, err := crypto.SigToPub(h[:], tx.Sig[0])
	if err != nil {
		return
	}
	addr = crypto.PubkeyToAddress(*pub)
	return
}

func parseSuretyTxType(dat []byte) SuretyTxType {
	var tx struct {
		Type SuretyTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return SuretyTxTypeUnknown
	}
	return tx.Type
}

func unmarshalSuretyTx[Tx any](dat []byte) (btx *SuretyTx, err error) {
	var txt suretyTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version > SuretyTxVersion1 {
		err = ErrUnsupportedTxVersion
		return
	}
	btx = new(SuretyTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.From = txt.From
	btx.Value = txt.Value
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalSuretyTx(dat []byte) (btx *SuretyTx, err error) {
	tp := parseSuretyTxType(dat)
	switch tp {
	case SuretyTxTypeSetOperating:
		return unmarshalSuretyTx[SetOperatingTx](dat)
	case SuretyTxTypeRegisterAirline:
		return unmarshalSuretyTx[RegisterAirlineTx](dat)
	case SuretyTxTypeFundAirline:
		return unmarshalSuretyTx[FundAirlineTx](dat)
	case SuretyTxTypeRegisterFlight:
		return unmarshalSuretyTx[RegisterFlightTx](dat)
	case SuretyTxTypeBuyInsurance:
		return unmarshalSuretyTx[BuyInsuranceTx](dat)
	case SuretyTxTypeClaimCredit:
		return unmarshalSuretyTx[ClaimCreditTx](dat)
	case SuretyTxTypeWithdraw:
		return unmarshalSuretyTx[WithdrawTx](dat)
	case SuretyTxTypeRegisterOracle:
		return unmarshalSuretyTx[RegisterOracleTx](dat)
	case SuretyTxTypeRequestStatus:
		return unmarshalSuretyTx[RequestStatusTx](dat)
	case SuretyTxTypeSubmitResponse:
		return unmarshalSuretyTx[SubmitResponseTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalSuretyTx(btx *SuretyTx) (dat []byte, err error) {
	return json.Marshal(btx)
}
