package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/spf13/viper"
)

const DefaultHomeDir = "$HOME/.surety"

type SuretyAppConfig struct {
	Home string `mapstructure:"-"`

	// IndexerDB is the sqlite file of the event indexer, relative to Home.
	IndexerDB string `mapstructure:"indexer_db"`
	// APIListen is the indexer HTTP API address; empty disables it.
	APIListen string `mapstructure:"api_listen"`
	// OracleKeyFiles are the keys the in-process oracle responder answers
	// requests with; empty disables it.
	OracleKeyFiles  []string      `mapstructure:"oracle_key_files"`
	StatusSourceURL string        `mapstructure:"status_source_url"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	// KeepVersions is how many committed state versions are retained; 0 keeps all.
	KeepVersions int64 `mapstructure:"keep_versions"`
}

func DefaultSuretyAppConfig(home string) *SuretyAppConfig {
	return &SuretyAppConfig{
		Home:         home,
		IndexerDB:    "data/indexer.db",
		APIListen:    "127.0.0.1:8080",
		PollInterval: 2 * time.Second,
		KeepVersions: 10000,
	}
}

func (c *SuretyAppConfig) IndexerDBFile() string {
	return rootify(c.IndexerDB, c.Home)
}

func (c *SuretyAppConfig) OracleKeyPaths() []string {
	out := make([]string, 0, len(c.OracleKeyFiles))
	for _, f := range c.OracleKeyFiles {
		out = append(out, rootify(f, c.Home))
	}
	return out
}

func (c *SuretyAppConfig) ValidateBasic() error {
	if c.PollInterval <= 0 {
		return errors.New("surety.poll_interval must be positive")
	}
	if c.IndexerDB == "" {
		return errors.New("surety.indexer_db must be set")
	}
	if c.KeepVersions < 0 {
		return errors.New("surety.keep_versions must not be negative")
	}
	return nil
}

func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *SuretyAppConfig `mapstructure:"surety"`
}

func homeOrDefault(home string) string {
	if len(home) == 0 {
		home = os.ExpandEnv(DefaultHomeDir)
	}
	return home
}

func NewSuretyConfig(home string) *Config {
	home = homeOrDefault(home)
	_ = os.MkdirAll(home+"/config", 0755)
	config := &Config{
		DefaultSuretyCometConfig(),
		DefaultSuretyAppConfig(home),
	}
	config.SetRoot(home)
	return config
}

// LoadConfig reads home/config/config.toml over the defaults.
func LoadConfig(home string) (*Config, error) {
	home = homeOrDefault(home)
	cfg := &Config{
		Config: DefaultSuretyCometConfig(),
		App:    DefaultSuretyAppConfig(home),
	}
	cfg.SetRoot(home)

	v := viper.New()
	v.SetConfigFile(filepath.Join(home, "config", "config.toml"))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SetRoot(home)
	cfg.App.Home = home
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	if err := cfg.App.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return cfg, nil
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultSuretyCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	cometConfig.Instrumentation.Prometheus = true
	return cometConfig
}
