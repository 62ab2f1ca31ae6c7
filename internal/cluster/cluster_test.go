package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/internal/ballot"
)

func TestNewValidates(t *testing.T) {
	cases := []struct {
		name    string
		self    ballot.NodeID
		members []Member
		wantErr string
	}{
		{
			name:    "zero id rejected",
			self:    1,
			members: []Member{{ID: 1, Addr: "a"}, {ID: 0, Addr: "b"}},
			wantErr: "reserved",
		},
		{
			name:    "duplicate id rejected",
			self:    1,
			members: []Member{{ID: 1, Addr: "a"}, {ID: 1, Addr: "b"}},
			wantErr: "duplicate",
		},
		{
			name:    "self must be present",
			self:    3,
			members: []Member{{ID: 1, Addr: "a"}, {ID: 2, Addr: "b"}},
			wantErr: "not present",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.self, tc.members)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestClusterSizeAndAddrs(t *testing.T) {
	members := []Member{
		{ID: 3, Addr: "host3:1"},
		{ID: 1, Addr: "host1:1"},
		{ID: 2, Addr: "host2:1"},
	}
	c, err := New(1, members)
	require.NoError(t, err)

	require.Equal(t, 3, c.Size())
	require.Equal(t, "host1:1", c.SelfAddr())

	peers := c.PeerAddrs()
	require.Len(t, peers, 2)
	require.Equal(t, "host2:1", peers[2])
	require.Equal(t, "host3:1", peers[3])
	require.NotContains(t, peers, ballot.NodeID(1))

	require.Equal(t, ballot.NodeID(1), c.Members[0].ID)
	require.Equal(t, ballot.NodeID(2), c.Members[1].ID)
	require.Equal(t, ballot.NodeID(3), c.Members[2].ID)
}
