package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/andresmejia3/chroma/internal/lookup"
	"github.com/andresmejia3/chroma/internal/types"
	"github.com/google/go-cmp/cmp"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry() *Registry {
	table := lookup.NewTable()
	table.Put(types.Red, "ABC123", types.LookupEntry{DisplayText: "Door A", SpokenText: "Door A unlocked"})
	return New(table, func() time.Time { return fixedNow })
}

func TestRecordLookupHit(t *testing.T) {
	r := newTestRegistry()

	got, ok := r.Record(types.Red, "ABC123", types.Segmented)
	if !ok {
		t.Fatal("first Record should be accepted")
	}

	want := types.FoundResult{
		Channel:     types.Red,
		RawPayload:  "ABC123",
		Method:      types.Segmented,
		DisplayText: "Door A",
		SpokenText:  "Door A unlocked",
		FoundAt:     fixedNow,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Record() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordUnknownPayload(t *testing.T) {
	r := newTestRegistry()

	got, ok := r.Record(types.Green, "zzz", types.ChannelDominance)
	if !ok {
		t.Fatal("Record should be accepted")
	}
	if got.DisplayText != "Unknown GREEN QR: zzz" {
		t.Errorf("DisplayText = %q", got.DisplayText)
	}
	if got.SpokenText != "Unknown green QR code detected" {
		t.Errorf("SpokenText = %q", got.SpokenText)
	}
}

func TestRecordIsIdempotentPerChannel(t *testing.T) {
	r := newTestRegistry()

	first, _ := r.Record(types.Red, "ABC123", types.Segmented)
	if _, ok := r.Record(types.Red, "OTHER", types.ChannelDominance); ok {
		t.Fatal("second Record for RED should be ignored")
	}

	results := r.Results()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if diff := cmp.Diff(first, results[0]); diff != "" {
		t.Errorf("stored result changed (-first +stored):\n%s", diff)
	}
}

func TestDiscoveryOrderAndMissing(t *testing.T) {
	r := newTestRegistry()
	r.Record(types.Blue, "b", types.Segmented)
	r.Record(types.Red, "r", types.Segmented)

	var order []types.Channel
	for _, res := range r.Results() {
		order = append(order, res.Channel)
	}
	if diff := cmp.Diff([]types.Channel{types.Blue, types.Red}, order); diff != "" {
		t.Errorf("discovery order mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]types.Channel{types.Green}, r.Missing()); diff != "" {
		t.Errorf("missing mismatch:\n%s", diff)
	}
	if r.Complete() {
		t.Error("registry with 2 results should not be complete")
	}

	r.Record(types.Green, "g", types.ChannelDominance)
	if !r.Complete() || len(r.Missing()) != 0 {
		t.Error("registry with 3 results should be complete")
	}
}

func TestConcurrentRecordKeepsOneResult(t *testing.T) {
	r := New(nil, nil)

	var wg sync.WaitGroup
	accepted := make(chan struct{}, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Record(types.Blue, "race", types.ChannelDominance); ok {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(accepted)

	n := 0
	for range accepted {
		n++
	}
	if n != 1 {
		t.Errorf("expected exactly one accepted Record, got %d", n)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 stored result, got %d", r.Len())
	}
}
