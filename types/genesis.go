package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
)

type GenesisState map[string]json.RawMessage

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

const SuretyModuleName = "surety"
const DefaultPower = 1000

const (
	FlagOverwrite = "overwrite"
	FlagChainID   = "chain-id"
	FlagHome      = "home"
	FlagOutput    = "output"
)

type GenesisAlloc struct {
	Address common.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

// SuretyGenesis is the app_state section of the genesis document.
type SuretyGenesis struct {
	Owner       common.Address `json:"owner"`
	Founder     common.Address `json:"founder"`
	FounderName string         `json:"founder_name"`
	Alloc       []GenesisAlloc `json:"alloc"`
	Params      Params         `json:"params"`
}

func DefaultSuretyGenesis(owner common.Address, founderName string) *SuretyGenesis {
	return &SuretyGenesis{
		Owner:       owner,
		Founder:     owner,
		FounderName: founderName,
		Alloc:       []GenesisAlloc{{Address: owner, Balance: 1000 * Ether}},
		Params:      DefaultParams(),
	}
}

func (g *SuretyGenesis) Validate(historyDepth uint64) error {
	if g.Owner == (common.Address{}) {
		return errors.New("genesis owner is empty")
	}
	if g.Founder == (common.Address{}) {
		return errors.New("genesis founder airline is empty")
	}
	if g.FounderName == "" {
		return errors.New("genesis founder name is empty")
	}
	seen := make(map[common.Address]bool, len(g.Alloc))
	for _, a := range g.Alloc {
		if seen[a.Address] {
			return fmt.Errorf("duplicate genesis alloc %s", a.Address.Hex())
		}
		seen[a.Address] = true
	}
	return g.Params.Validate(historyDepth)
}
