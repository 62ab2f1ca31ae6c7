package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	logging "github.com/op/go-logging"
	"golang.org/x/sync/errgroup"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/clock"
	"github.com/latticedb/lattice/internal/cluster"
	"github.com/latticedb/lattice/internal/config"
	"github.com/latticedb/lattice/internal/host"
	"github.com/latticedb/lattice/internal/journal"
	"github.com/latticedb/lattice/internal/metrics"
	"github.com/latticedb/lattice/internal/paxos"
	"github.com/latticedb/lattice/internal/runtime"
	"github.com/latticedb/lattice/internal/transport"
	"github.com/latticedb/lattice/internal/wire"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("latticed")
}

func run(ctx context.Context, cfg config.Config) error {
	level, err := logging.LogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("latticed: %w", err)
	}
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(
		`%{time:15:04:05.000} %{level:.4s} %{module}: %{message}`,
	))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)

	clusterMembers := make([]cluster.Member, 0, len(cfg.Peers)+1)
	clusterMembers = append(clusterMembers, cluster.Member{ID: cfg.NodeID, Addr: cfg.Listen})
	for _, p := range cfg.Peers {
		clusterMembers = append(clusterMembers, cluster.Member{ID: ballot.NodeID(p.ID), Addr: p.Addr})
	}
	topo, err := cluster.New(cfg.NodeID, clusterMembers)
	if err != nil {
		return fmt.Errorf("latticed: %w", err)
	}

	jrn, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("latticed: open journal: %w", err)
	}
	defer jrn.Close()

	progress, err := jrn.Load(ctx)
	if err != nil {
		return fmt.Errorf("latticed: load journal: %w", err)
	}

	var stats paxos.Stats
	if cfg.StatsdAddr != "" {
		sd, err := metrics.NewStatsd(cfg.StatsdAddr, fmt.Sprintf("lattice.node%d", cfg.NodeID))
		if err != nil {
			return fmt.Errorf("latticed: statsd: %w", err)
		}
		defer sd.Close()
		stats = sd
	}

	node := paxos.NewNode(cfg.NodeID, topo.Size(), jrn, stats, progress, clock.NewReal().Now())

	tcp := transport.NewTCP(cfg.NodeID, topo.PeerAddrs())
	if err := tcp.Listen(cfg.Listen); err != nil {
		return fmt.Errorf("latticed: listen %s: %w", cfg.Listen, err)
	}
	defer tcp.Close()

	store := host.NewMemory()
	clk := clock.NewReal()

	rt := runtime.New(cfg.NodeID, node, tcp, store, clk, clk, cfg.LeaderTimeoutMin, cfg.LeaderTimeoutMax)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.Run(gctx)
	})
	g.Go(func() error {
		return serveClients(gctx, cfg.Listen, rt)
	})

	logger.Infof("node %d listening on %s, %d peer(s)", cfg.NodeID, cfg.Listen, len(cfg.Peers))
	return g.Wait()
}

// serveClients accepts plain TCP client connections: one request per
// connection, a length-prefixed host.Command, replied to with a
// length-prefixed result. Not the inter-node protocol — that's
// transport.TCP's job on the same listen address is deliberately not
// shared, so a client port is configured separately in practice; here
// it reuses cfg.Listen's address with a fixed +1 port offset for the
// demo binary.
func serveClients(ctx context.Context, nodeAddr string, rt *runtime.Runtime) error {
	addr, err := clientAddr(nodeAddr)
	if err != nil {
		return err
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("latticed: client listen %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go handleClient(ctx, conn, rt)
	}
}

func handleClient(ctx context.Context, conn net.Conn, rt *runtime.Runtime) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	b, err := wire.ReadFieldBytes(r)
	if err != nil {
		return
	}
	cmd, err := host.DecodeCommand(b)
	if err != nil {
		writeReply(conn, []byte("ERR "+err.Error()))
		return
	}

	value := paxos.CommandValue{MsgID: uuid.New(), Bytes: host.EncodeCommand(cmd)}
	reply, err := rt.Submit(ctx, value)
	if err != nil {
		writeReply(conn, []byte("ERR "+err.Error()))
		return
	}
	writeReply(conn, reply)
}

func writeReply(conn net.Conn, b []byte) {
	w := bufio.NewWriter(conn)
	if err := wire.WriteFieldBytes(w, b); err != nil {
		return
	}
	w.Flush()
}

// clientAddr derives a client-facing address from the inter-node
// listen address by incrementing the port by one, so a single -listen
// flag is enough to run the demo binary.
func clientAddr(nodeAddr string) (string, error) {
	h, port, err := net.SplitHostPort(nodeAddr)
	if err != nil {
		return "", fmt.Errorf("latticed: malformed listen address %q: %w", nodeAddr, err)
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return "", fmt.Errorf("latticed: malformed listen port %q: %w", port, err)
	}
	return fmt.Sprintf("%s:%d", h, p+1), nil
}
