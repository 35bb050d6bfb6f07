package state

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// EscrowAddress holds every value paid into the application: airline
// funding, premiums and oracle fees. Payouts are transferred out of it.
var EscrowAddress = common.BytesToAddress(crypto.Keccak256([]byte("surety/escrow"))[12:])

type Account struct {
	Address common.Address
	Balance uint64
	Nonce   uint64
}

type accountSt struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

func (a *Account) MarshalJSON() (dat []byte, err error) {
	o := accountSt{
		Address: a.Address.Hex(),
		Balance: a.Balance,
		Nonce:   a.Nonce,
	}
	return json.Marshal(o)
}

func (a *Account) UnmarshalJSON(dat []byte) (err error) {
	var o accountSt
	err = json.Unmarshal(dat, &o)
	if err != nil {
		return
	}
	a.Address = common.HexToAddress(o.Address)
	a.Balance = o.Balance
	a.Nonce = o.Nonce
	return
}

func (a *Account) Clone() *Account {
	n := *a
	return &n
}

func (a *Account) encode() ([]byte, error) {
	return rlp.EncodeToBytes(a)
}

func decodeAccount(dat []byte) (*Account, error) {
	a := new(Account)
	if err := rlp.DecodeBytes(dat, a); err != nil {
		return nil, err
	}
	return a, nil
}
