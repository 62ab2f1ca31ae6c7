// Package config loads a node's runtime configuration via viper: the
// consensus options spec.md names (leaderTimeoutMin/Max, clusterSize)
// plus the ambient options a runnable binary needs (identity, network,
// storage, metrics, logging). The teacher carries no config loader of
// its own; this package follows the wider pack's viper/mapstructure
// convention instead.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/latticedb/lattice/internal/ballot"
)

// Peer is one other cluster member, as read from the repeatable
// --peer flag ("id=addr") or, when no flag is given, from the config
// key "peers" (a list of id/addr tables).
type Peer struct {
	ID   uint64 `mapstructure:"id"`
	Addr string `mapstructure:"addr"`
}

// Config is the full set of options a node needs to start. Field names
// match spec.md's vocabulary where it defines one (leaderTimeoutMin,
// leaderTimeoutMax, clusterSize); clusterSize is derived from len(Peers)+1
// by ClusterSize rather than configured directly, since it must always
// agree with the peer table.
type Config struct {
	NodeID ballot.NodeID `mapstructure:"nodeId"`
	Listen string        `mapstructure:"listen"`
	Peers  []Peer        `mapstructure:"peers"`

	LeaderTimeoutMin time.Duration `mapstructure:"leaderTimeoutMin"`
	LeaderTimeoutMax time.Duration `mapstructure:"leaderTimeoutMax"`

	JournalPath string `mapstructure:"journalPath"`
	StatsdAddr  string `mapstructure:"statsdAddr"`
	LogLevel    string `mapstructure:"logLevel"`
}

// ClusterSize is spec §6's clusterSize: every peer plus self.
func (c Config) ClusterSize() int {
	return len(c.Peers) + 1
}

// Quorum is floor(clusterSize/2)+1, computed rather than configured, as
// §6 requires.
func (c Config) Quorum() int {
	return c.ClusterSize()/2 + 1
}

func defaults(v *viper.Viper) {
	v.SetDefault("listen", ":7300")
	v.SetDefault("leaderTimeoutMin", 500*time.Millisecond)
	v.SetDefault("leaderTimeoutMax", 1000*time.Millisecond)
	v.SetDefault("journalPath", "lattice.journal")
	v.SetDefault("logLevel", "info")
}

// Flags registers the recognized flags on fs, for binding into a
// viper instance by Load.
func Flags(fs *pflag.FlagSet) {
	fs.Uint64("node-id", 0, "this node's id (non-zero)")
	fs.String("listen", "", "address to listen on for peer connections")
	fs.StringSlice("peer", nil, "peer in id=addr form, repeatable")
	fs.Duration("leader-timeout-min", 0, "minimum leader timeout")
	fs.Duration("leader-timeout-max", 0, "maximum leader timeout")
	fs.String("journal-path", "", "path to the durable journal file")
	fs.String("statsd-addr", "", "statsd collector address, empty disables metrics")
	fs.String("log-level", "", "log level (debug, info, warning, error)")
	fs.String("config", "", "path to a config file (yaml, json, toml)")
}

// Load builds a Config from, in ascending priority: defaults, a config
// file (if one is named by --config or found in the search path),
// environment variables prefixed LATTICE_, and flags already parsed
// into fs.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("lattice")
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("config: bind flags: %w", err)
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("lattice")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/lattice")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	cfg := Config{
		NodeID:           ballot.NodeID(v.GetUint64("node-id")),
		Listen:           v.GetString("listen"),
		LeaderTimeoutMin: v.GetDuration("leader-timeout-min"),
		LeaderTimeoutMax: v.GetDuration("leader-timeout-max"),
		JournalPath:      v.GetString("journal-path"),
		StatsdAddr:       v.GetString("statsd-addr"),
		LogLevel:         v.GetString("log-level"),
	}
	if cfg.LeaderTimeoutMin == 0 {
		cfg.LeaderTimeoutMin = v.GetDuration("leaderTimeoutMin")
	}
	if cfg.LeaderTimeoutMax == 0 {
		cfg.LeaderTimeoutMax = v.GetDuration("leaderTimeoutMax")
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = v.GetString("journalPath")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = v.GetString("logLevel")
	}

	peerStrs, _ := fs.GetStringSlice("peer")
	if len(peerStrs) > 0 {
		peers, err := parsePeers(peerStrs)
		if err != nil {
			return Config{}, err
		}
		cfg.Peers = peers
	} else if err := v.UnmarshalKey("peers", &cfg.Peers); err != nil {
		return Config{}, fmt.Errorf("config: decode peers: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parsePeers(strs []string) ([]Peer, error) {
	peers := make([]Peer, 0, len(strs))
	for _, s := range strs {
		var id uint64
		var addr string
		if _, err := fmt.Sscanf(s, "%d=%s", &id, &addr); err != nil {
			return nil, fmt.Errorf("config: malformed peer %q, want id=addr", s)
		}
		peers = append(peers, Peer{ID: id, Addr: addr})
	}
	return peers, nil
}

// Validate checks the options required to run a node are present and
// internally consistent.
func (c Config) Validate() error {
	if c.NodeID == 0 {
		return fmt.Errorf("config: nodeId is required and must be non-zero")
	}
	if c.Listen == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.LeaderTimeoutMin <= 0 {
		return fmt.Errorf("config: leaderTimeoutMin must be positive")
	}
	if c.LeaderTimeoutMax <= 0 {
		return fmt.Errorf("config: leaderTimeoutMax must be positive")
	}
	if c.LeaderTimeoutMax < c.LeaderTimeoutMin {
		return fmt.Errorf("config: leaderTimeoutMax must be >= leaderTimeoutMin")
	}
	if c.JournalPath == "" {
		return fmt.Errorf("config: journalPath is required")
	}
	seen := make(map[uint64]bool, len(c.Peers))
	for _, p := range c.Peers {
		if p.ID == 0 {
			return fmt.Errorf("config: peer id 0 is reserved")
		}
		if p.ID == uint64(c.NodeID) {
			return fmt.Errorf("config: peer list must not include self (id %d)", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate peer id %d", p.ID)
		}
		seen[p.ID] = true
		if p.Addr == "" {
			return fmt.Errorf("config: peer %d has an empty address", p.ID)
		}
	}
	return nil
}
