package crypto

import (
	"fmt"
	"os"

	"github.com/calehh/surety-app/types"
	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
)

// ValidatorKey is the consensus key CometBFT keeps in priv_validator_key.json.
// It is separate from the secp256k1 account keys that sign transactions.
type ValidatorKey struct {
	PubKey crypto.PubKey
}

func LoadValidatorKey(keyFilePath string) (*ValidatorKey, error) {
	dat, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	var pvKey privval.FilePVKey
	if err = cmtjson.Unmarshal(dat, &pvKey); err != nil {
		return nil, fmt.Errorf("reading validator key from %v: %w", keyFilePath, err)
	}
	if pvKey.PubKey == nil {
		return nil, fmt.Errorf("validator key %v has no public key", keyFilePath)
	}
	return &ValidatorKey{PubKey: pvKey.PubKey}, nil
}

// GenesisValidator is the genesis entry admitting this key with power.
func (k *ValidatorKey) GenesisValidator(name string, power int64) types.GenesisValidator {
	return types.GenesisValidator{
		Address: k.PubKey.Address(),
		PubKey:  k.PubKey,
		Power:   power,
		Name:    name,
	}
}
