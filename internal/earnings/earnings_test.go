package earnings

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizbank/frizbank/internal/kv"
	"github.com/frizbank/frizbank/internal/logging"
	"github.com/frizbank/frizbank/internal/market"
	"github.com/frizbank/frizbank/internal/session"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func quotes(prices ...float64) []market.Quote {
	ids := []string{"bitcoin", "ethereum", "solana", "cardano"}
	out := make([]market.Quote, len(prices))
	for i, p := range prices {
		out[i] = market.Quote{ID: ids[i], CurrentPrice: p}
	}
	return out
}

func TestAccrueFirstRoundOnlyRecordsPrices(t *testing.T) {
	st, accrued := Accrue(State{}, 1000, quotes(100, 50), t0)
	assert.Zero(t, accrued)
	assert.Empty(t, st.History)
	assert.Equal(t, map[string]float64{"bitcoin": 100, "ethereum": 50}, st.LastPrices)
}

func TestAccrueSplitsBalanceEvenly(t *testing.T) {
	st, _ := Accrue(State{}, 1000, quotes(100, 50), t0)

	// bitcoin +10% on 500, ethereum -4% on 500.
	st, accrued := Accrue(st, 1000, quotes(110, 48), t0.Add(30*time.Second))
	assert.InDelta(t, 30.0, accrued, 1e-9)
	assert.InDelta(t, 30.0, st.Earnings, 1e-9)
	require.Len(t, st.History, 1)
	assert.Equal(t, t0.Add(30*time.Second), st.History[0].Date)
	assert.InDelta(t, 3.0, st.TotalReturn(1000), 1e-9)
	assert.Zero(t, st.TotalReturn(0))
}

func TestAccrueDoesNotMutateInput(t *testing.T) {
	prev := State{LastPrices: map[string]float64{"bitcoin": 100}}
	_, _ = Accrue(prev, 10, quotes(200), t0)
	assert.Equal(t, 100.0, prev.LastPrices["bitcoin"])
}

func TestHistoryIsCappedAtThirty(t *testing.T) {
	st := State{LastPrices: map[string]float64{"bitcoin": 100}}
	price := 100.0
	for i := 0; i < HistoryLimit; i++ {
		price++
		st, _ = Accrue(st, 100, quotes(price), t0.Add(time.Duration(i)*time.Second))
	}
	require.Len(t, st.History, HistoryLimit)
	oldest := st.History[0]

	price++
	st, _ = Accrue(st, 100, quotes(price), t0.Add(time.Hour))
	require.Len(t, st.History, HistoryLimit)
	assert.NotEqual(t, oldest.Date, st.History[0].Date, "oldest entry dropped")
	assert.Equal(t, t0.Add(time.Hour), st.History[HistoryLimit-1].Date)
}

func TestWeeklyChange(t *testing.T) {
	var st State
	_, ok := st.WeeklyChange()
	assert.False(t, ok)

	for i := 0; i < 7; i++ {
		st.History = append(st.History, HistoryEntry{Amount: 1})
	}
	_, ok = st.WeeklyChange()
	assert.False(t, ok, "no previous week yet")

	for i := 0; i < 7; i++ {
		st.History = append(st.History, HistoryEntry{Amount: 1.5})
	}
	change, ok := st.WeeklyChange()
	require.True(t, ok)
	assert.InDelta(t, 50.0, change, 1e-9)

	var partial State
	for i := 0; i < 7; i++ {
		partial.History = append(partial.History, HistoryEntry{Amount: 1})
	}
	partial.History = append(partial.History, HistoryEntry{Amount: 2})
	change, ok = partial.WeeklyChange()
	require.True(t, ok, "eight entries compare against a partial previous week")
	assert.InDelta(t, 100.0/7, change, 1e-9)
}

func TestStoreRoundTripAndMalformedValues(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	store := NewStore(mem, logging.Discard())

	empty, err := store.Load(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Zero(t, empty.Earnings)
	assert.NotNil(t, empty.LastPrices)

	st := State{Earnings: 12.5, History: []HistoryEntry{{Date: t0, Amount: 12.5}}, LastPrices: map[string]float64{"bitcoin": 1}}
	require.NoError(t, store.Save(ctx, "Ana@x.com", st, 100))

	loaded, err := store.Load(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, st, loaded)

	bal, err := mem.Get(ctx, kv.BalanceKey("ana@x.com"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", bal)

	require.NoError(t, mem.Set(ctx, kv.EarningsHistoryKey("ana@x.com"), "{not json", 0))
	loaded, err = store.Load(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Empty(t, loaded.History)
	assert.Equal(t, 12.5, loaded.Earnings)
}

type fakeQuotes struct {
	calls  atomic.Int32
	prices []float64
	err    error
}

func (f *fakeQuotes) FetchMarkets(context.Context, string, int) ([]market.Quote, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return quotes(f.prices...), nil
}

type fixedBalances map[string]int64

func (f fixedBalances) BalanceByOwner(_ context.Context, id string) (int64, error) {
	return f[id], nil
}

func TestSchedulerTracksSessionsAndAccrues(t *testing.T) {
	ctx := context.Background()
	bus := session.NewBus(logging.Discard())
	mem := kv.NewMemory()
	store := NewStore(mem, logging.Discard())
	src := &fakeQuotes{prices: []float64{100}}

	s := NewScheduler(SchedulerConfig{PerPage: 10}, store, src, fixedBalances{"u-1": 100_000}, bus, logging.Discard())

	s.Tick(ctx)
	assert.Zero(t, src.calls.Load(), "no active users, no fetch")

	bus.Publish(session.Event{Type: session.EventLogin, UserID: "u-1", Email: "ana@x.com"})
	assert.Equal(t, []string{"u-1"}, s.Active())

	s.Tick(ctx)
	src.prices = []float64{101}
	s.Tick(ctx)

	st, err := store.Load(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, st.Earnings, 1e-9)
	assert.Len(t, st.History, 1)

	bus.Publish(session.Event{Type: session.EventLogout, UserID: "u-1", Email: "ana@x.com"})
	assert.Empty(t, s.Active())

	<-s.Stop().Done()
	assert.Zero(t, bus.Len(), "stop unsubscribes")
}

func TestSchedulerSkipsRoundWhenMarketsFail(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	src := &fakeQuotes{err: errors.New("boom")}
	s := NewScheduler(SchedulerConfig{}, NewStore(mem, nil), src, fixedBalances{}, nil, logging.Discard())
	s.Track("u-1", "ana@x.com")

	s.Tick(ctx)
	_, err := mem.Get(ctx, kv.EarningsKey("ana@x.com"))
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSchedulerStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Spec: "every now and then"}, NewStore(kv.NewMemory(), nil), &fakeQuotes{}, fixedBalances{}, nil, logging.Discard())
	assert.Error(t, s.Start())

	ok := NewScheduler(SchedulerConfig{Spec: "@every 1h"}, NewStore(kv.NewMemory(), nil), &fakeQuotes{}, fixedBalances{}, nil, logging.Discard())
	require.NoError(t, ok.Start())
	require.NoError(t, ok.Start())
	<-ok.Stop().Done()
}
