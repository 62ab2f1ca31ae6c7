package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/internal/ballot"
)

func newFlagSet(args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	_ = fs.Parse(args)
	return fs
}

func TestLoadFromFlags(t *testing.T) {
	fs := newFlagSet(
		"--node-id=1",
		"--listen=127.0.0.1:7300",
		"--leader-timeout-min=200ms",
		"--leader-timeout-max=400ms",
		"--journal-path=/tmp/node1.journal",
		"--peer=2=127.0.0.1:7301",
		"--peer=3=127.0.0.1:7302",
	)

	cfg, err := Load(fs)
	require.NoError(t, err)

	require.Equal(t, ballot.NodeID(1), cfg.NodeID)
	require.Equal(t, "127.0.0.1:7300", cfg.Listen)
	require.Equal(t, 200*time.Millisecond, cfg.LeaderTimeoutMin)
	require.Equal(t, 400*time.Millisecond, cfg.LeaderTimeoutMax)
	require.Equal(t, "/tmp/node1.journal", cfg.JournalPath)
	require.Len(t, cfg.Peers, 2)
	require.Equal(t, Peer{ID: 2, Addr: "127.0.0.1:7301"}, cfg.Peers[0])
	require.Equal(t, Peer{ID: 3, Addr: "127.0.0.1:7302"}, cfg.Peers[1])

	require.Equal(t, 3, cfg.ClusterSize())
	require.Equal(t, 2, cfg.Quorum())
}

func TestLoadAppliesDefaultsWhenFlagsOmitted(t *testing.T) {
	fs := newFlagSet("--node-id=1", "--journal-path=/tmp/node1.journal")

	cfg, err := Load(fs)
	require.NoError(t, err)
	require.Equal(t, ":7300", cfg.Listen)
	require.Equal(t, 500*time.Millisecond, cfg.LeaderTimeoutMin)
	require.Equal(t, 1000*time.Millisecond, cfg.LeaderTimeoutMax)
}

func TestLoadRejectsMalformedPeer(t *testing.T) {
	fs := newFlagSet("--node-id=1", "--journal-path=j", "--peer=not-a-peer")
	_, err := Load(fs)
	require.Error(t, err)
}

func TestLoadSurfacesValidationErrors(t *testing.T) {
	fs := newFlagSet("--listen=:7300", "--journal-path=j")
	_, err := Load(fs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nodeId")
}

func TestParsePeers(t *testing.T) {
	peers, err := parsePeers([]string{"2=host:7301", "3=host:7302"})
	require.NoError(t, err)
	require.Equal(t, []Peer{{ID: 2, Addr: "host:7301"}, {ID: 3, Addr: "host:7302"}}, peers)

	_, err = parsePeers([]string{"oops"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		NodeID:           1,
		Listen:           ":7300",
		LeaderTimeoutMin: 500 * time.Millisecond,
		LeaderTimeoutMax: time.Second,
		JournalPath:      "j",
	}
	require.NoError(t, base.Validate())

	cases := []struct {
		name    string
		mutate  func(c Config) Config
		wantErr string
	}{
		{"missing node id", func(c Config) Config { c.NodeID = 0; return c }, "nodeId"},
		{"missing listen", func(c Config) Config { c.Listen = ""; return c }, "listen"},
		{"non-positive min", func(c Config) Config { c.LeaderTimeoutMin = 0; return c }, "leaderTimeoutMin"},
		{"non-positive max", func(c Config) Config { c.LeaderTimeoutMax = 0; return c }, "leaderTimeoutMax"},
		{"max below min", func(c Config) Config { c.LeaderTimeoutMax = c.LeaderTimeoutMin - time.Millisecond; return c }, "leaderTimeoutMax must be >="},
		{"missing journal path", func(c Config) Config { c.JournalPath = ""; return c }, "journalPath"},
		{"peer id zero", func(c Config) Config { c.Peers = []Peer{{ID: 0, Addr: "a"}}; return c }, "reserved"},
		{"peer is self", func(c Config) Config { c.Peers = []Peer{{ID: 1, Addr: "a"}}; return c }, "not include self"},
		{"duplicate peer", func(c Config) Config { c.Peers = []Peer{{ID: 2, Addr: "a"}, {ID: 2, Addr: "b"}}; return c }, "duplicate"},
		{"empty peer addr", func(c Config) Config { c.Peers = []Peer{{ID: 2, Addr: ""}}; return c }, "empty address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(base).Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestClusterSizeAndQuorum(t *testing.T) {
	cfg := Config{Peers: []Peer{{ID: 2, Addr: "a"}, {ID: 3, Addr: "b"}, {ID: 4, Addr: "c"}}}
	require.Equal(t, 4, cfg.ClusterSize())
	require.Equal(t, 3, cfg.Quorum())
}
