package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/calehh/surety-app/config"
	"github.com/calehh/surety-app/crypto"
	"github.com/calehh/surety-app/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const ownerKeyFile = "owner_key.json"

type printInfo struct {
	ChainID  string         `json:"chain_id" yaml:"chain_id"`
	NodeID   string         `json:"node_id" yaml:"node_id"`
	Owner    string         `json:"owner" yaml:"owner"`
	OwnerKey string         `json:"owner_key" yaml:"owner_key"`
	AppState map[string]any `json:"app_state" yaml:"app_state"`
}

func displayInfo(info printInfo, output string) error {
	var (
		out []byte
		err error
	)
	switch output {
	case "yaml":
		out, err = yaml.Marshal(info)
	default:
		out, err = json.MarshalIndent(info, "", " ")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, owner key, genesis, and application configuration files",
	Long: `Initialize the node's configuration files. The generated owner key
controls the contract and is registered as the founding airline.`,
	Args: cobra.ExactArgs(0),
	RunE: initRun,
}

func init() {
	initCmd.Flags().BoolP(types.FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(types.FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(types.FlagHome, "", "home directory")
	initCmd.Flags().String(types.FlagOutput, "json", "print format, json or yaml")
	initCmd.Flags().String("founder", "Founder Air", "name of the founding airline")
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(types.FlagHome)
	chainID, _ := cmd.Flags().GetString(types.FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(types.FlagOverwrite)
	output, _ := cmd.Flags().GetString(types.FlagOutput)
	founder, _ := cmd.Flags().GetString("founder")

	if chainID == "" {
		chainID = fmt.Sprintf("surety-chain-%v", rand.Uint64())
	}
	cfg := config.NewSuretyConfig(home)

	genFile := cfg.GenesisFile()
	if _, err := os.Stat(genFile); err == nil && !overwrite {
		return fmt.Errorf("genesis file %s already exists, use --%s", genFile, types.FlagOverwrite)
	}

	nodeID, _, err := config.InitializeNodeValidatorFiles(cfg, nil)
	if err != nil {
		return err
	}
	vk, err := crypto.LoadValidatorKey(cfg.PrivValidatorKeyFile())
	if err != nil {
		return err
	}
	keyPath := filepath.Join(cfg.RootDir, "config", ownerKeyFile)
	owner, err := crypto.LoadOrGenKey(keyPath)
	if err != nil {
		return fmt.Errorf("owner key: %w", err)
	}

	appState, err := json.Marshal(types.DefaultSuretyGenesis(owner.Address(), founder))
	if err != nil {
		return err
	}
	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators:      []types.GenesisValidator{vk.GenesisValidator(cfg.Moniker, types.DefaultPower)},
		AppState:        appState,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	if err = config.WriteConfigFile(filepath.Join(cfg.RootDir, "config", "config.toml"), cfg); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	var state map[string]any
	if err = json.Unmarshal(appState, &state); err != nil {
		return err
	}
	return displayInfo(printInfo{
		ChainID:  chainID,
		NodeID:   nodeID,
		Owner:    owner.Address().Hex(),
		OwnerKey: keyPath,
		AppState: state,
	}, output)
}
