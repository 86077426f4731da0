package perftests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"auction-engine/internal/auction"
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/locker"
	"auction-engine/internal/repository"
	"auction-engine/internal/sweeper"
	"auction-engine/utils"

	"github.com/shopspring/decimal"
)

// LoadScenario mixes bids, raises and reads over a pool of auctions. Ratios
// are out of 10; whatever is left after reads and raises are plain bids.
type LoadScenario struct {
	Name         string
	NumItems     int
	ReadRatio    int
	RaiseRatio   int
	MaxIncrement int
	// CloseAfter lists items with this deadline; zero means they stay open
	CloseAfter time.Duration
	// SweepEvery runs the sweeper alongside the load when set
	SweepEvery time.Duration
}

// outcomes counts how each operation ended
type outcomes struct {
	accepted, tooLow, closed, busy, reads, other int64
}

func (o *outcomes) record(err error) {
	switch {
	case err == nil:
		atomic.AddInt64(&o.accepted, 1)
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		atomic.AddInt64(&o.tooLow, 1)
	case errors.Is(err, biddingerrors.ErrItemClosed):
		atomic.AddInt64(&o.closed, 1)
	case biddingerrors.IsTransient(err):
		atomic.AddInt64(&o.busy, 1)
	default:
		atomic.AddInt64(&o.other, 1)
	}
}

// latencies collects per-operation durations
type latencies struct {
	mu      sync.Mutex
	samples []time.Duration
}

func (l *latencies) add(d time.Duration) {
	l.mu.Lock()
	l.samples = append(l.samples, d)
	l.mu.Unlock()
}

// percentile returns the p-th percentile, p in [0,1]
func (l *latencies) percentile(p float64) time.Duration {
	l.mu.Lock()
	sorted := slices.Clone(l.samples)
	l.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// setupService creates an in-memory bidding service with numItems items
// owned by a single seller, returning their ids
func setupService(b *testing.B, numItems int, closeAfter ...time.Duration) (*bidding.BiddingService, []string) {
	b.Helper()

	utils.SetLogOutput(io.Discard)

	repo := repository.NewMemoryRepo()
	registry := auction.NewRegistry(repo, locker.NewLocalLocker(5*time.Second))
	svc := bidding.NewBiddingService(repo, registry, bidding.DefaultConfig())

	ctx := context.Background()
	seller, err := svc.RegisterUser(ctx, "seller")
	if err != nil {
		b.Fatalf("failed to register seller: %v", err)
	}

	deadline := 24 * time.Hour
	if len(closeAfter) > 0 && closeAfter[0] > 0 {
		deadline = closeAfter[0]
	}
	closeTime := time.Now().Add(deadline)

	itemIDs := make([]string, 0, numItems)
	for i := 0; i < numItems; i++ {
		item, err := svc.CreateItem(ctx, seller.UserID, fmt.Sprintf("title_%d", i), "Load test item", decimal.NewFromInt(100), closeTime)
		if err != nil {
			b.Fatalf("failed to create item: %v", err)
		}
		itemIDs = append(itemIDs, item.ItemID)
	}
	return svc, itemIDs
}

// Benchmark_Load_AuctionEngine runs multiple scenarios
func Benchmark_Load_AuctionEngine(b *testing.B) {
	scenarios := []LoadScenario{
		{Name: "Many-Items-BidHeavy", NumItems: 200, ReadRatio: 1, RaiseRatio: 1, MaxIncrement: 50},
		{Name: "Few-Items-Contended", NumItems: 5, ReadRatio: 0, RaiseRatio: 3, MaxIncrement: 20},
		{Name: "Browse-Heavy", NumItems: 50, ReadRatio: 8, RaiseRatio: 1, MaxIncrement: 30},
		{Name: "Single-Item-Raises", NumItems: 1, ReadRatio: 2, RaiseRatio: 8, MaxIncrement: 10},
		{Name: "Closing-Under-Load", NumItems: 50, ReadRatio: 2, RaiseRatio: 2, MaxIncrement: 30,
			CloseAfter: 50 * time.Millisecond, SweepEvery: 10 * time.Millisecond},
	}

	for _, s := range scenarios {
		b.Run(s.Name, func(b *testing.B) {
			runScenario(b, s)
		})
	}
}

func runScenario(b *testing.B, s LoadScenario) {
	b.ReportAllocs()

	svc, itemIDs := setupService(b, s.NumItems, s.CloseAfter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sweeps sync.WaitGroup
	if s.SweepEvery > 0 {
		sweeps.Add(1)
		go func() {
			defer sweeps.Done()
			_ = sweeper.New(svc.Sweep, s.SweepEvery).Run(ctx)
		}()
	}

	var (
		res outcomes
		lat latencies
	)

	b.ResetTimer()
	start := time.Now()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		userID := fmt.Sprintf("user_%d", rnd.Int())

		for pb.Next() {
			itemID := itemIDs[rnd.Intn(len(itemIDs))]
			op := rnd.Intn(10)

			opStart := time.Now()
			switch {
			case op < s.ReadRatio:
				_, _ = svc.GetItem(ctx, itemID)
				atomic.AddInt64(&res.reads, 1)
			case op < s.ReadRatio+s.RaiseRatio:
				increment := decimal.NewFromInt(int64(1 + rnd.Intn(s.MaxIncrement)))
				_, _, err := svc.RaiseOwnBid(ctx, itemID, userID, increment)
				res.record(err)
			default:
				amount := decimal.NewFromInt(int64(100 + rnd.Intn(s.MaxIncrement*10)))
				_, _, err := svc.PlaceBid(ctx, itemID, userID, amount)
				res.record(err)
			}
			lat.add(time.Since(opStart))
		}
	})

	elapsed := time.Since(start)
	b.StopTimer()
	cancel()
	sweeps.Wait()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	b.ReportMetric(float64(res.accepted), "accepted")
	b.ReportMetric(float64(res.busy), "busy")
	b.Logf(
		"Scenario: %s | Items: %d | Accepted: %d | TooLow: %d | Closed: %d | Busy: %d | Other: %d | Reads: %d | Elapsed: %s | Latency p50: %s p95: %s p99: %s | Memory Alloc: %.2f MB",
		s.Name, s.NumItems, res.accepted, res.tooLow, res.closed, res.busy, res.other, res.reads, elapsed,
		lat.percentile(0.50), lat.percentile(0.95), lat.percentile(0.99),
		float64(mem.Alloc)/1024/1024,
	)

	if res.other > 0 {
		b.Errorf("%d operations failed with unexpected errors", res.other)
	}
}
