package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/calehh/surety-app/tx"
	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrKeyAddressMismatch = errors.New("key file address does not match private key")

// Key is a secp256k1 account key used by airlines, insurees and oracles.
type Key struct {
	priv *ecdsa.PrivateKey
}

type keyFile struct {
	Address string `json:"address"`
	PrivKey string `json:"priv_key"`
}

func GenerateKey() (*Key, error) {
	priv, err := eth_crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Key{priv: priv}, nil
}

func KeyFromHex(s string) (*Key, error) {
	priv, err := eth_crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, err
	}
	return &Key{priv: priv}, nil
}

func LoadKey(path string) (*Key, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf keyFile
	if err = json.Unmarshal(dat, &kf); err != nil {
		return nil, fmt.Errorf("reading key from %v: %w", path, err)
	}
	k, err := KeyFromHex(kf.PrivKey)
	if err != nil {
		return nil, fmt.Errorf("reading key from %v: %w", path, err)
	}
	if kf.Address != "" && common.HexToAddress(kf.Address) != k.Address() {
		return nil, ErrKeyAddressMismatch
	}
	return k, nil
}

func LoadOrGenKey(path string) (*Key, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadKey(path)
	}
	k, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err = k.Save(path); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *Key) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	dat, err := json.MarshalIndent(keyFile{
		Address: k.Address().Hex(),
		PrivKey: hex.EncodeToString(eth_crypto.FromECDSA(k.priv)),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, dat, 0o600)
}

func (k *Key) Address() common.Address {
	return eth_crypto.PubkeyToAddress(k.priv.PublicKey)
}

func (k *Key) PrivateKey() *ecdsa.PrivateKey {
	return k.priv
}

// SignTx stamps btx as sent from this key and signs it for chainId.
func (k *Key) SignTx(btx *tx.SuretyTx, chainId string) error {
	btx.From = k.Address()
	return btx.Sign(k.priv, chainId)
}
