// Package registry accumulates at most one decoded result per color channel.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/andresmejia3/chroma/internal/types"
)

// Lookup resolves a decoded payload to its semantic record.
type Lookup interface {
	Lookup(ch types.Channel, payload string) (types.LookupEntry, bool)
}

// Registry holds the results of one scan session. Record is safe for
// concurrent use; the first successful decode per channel wins.
type Registry struct {
	mu      sync.Mutex
	lookup  Lookup
	now     func() time.Time
	results map[types.Channel]types.FoundResult
	order   []types.Channel
}

// New creates an empty registry. lookup may be nil, in which case every
// payload is reported as unknown.
func New(lookup Lookup, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		lookup:  lookup,
		now:     now,
		results: make(map[types.Channel]types.FoundResult, len(types.Channels)),
	}
}

// Record stores the result for ch unless one already exists. It returns the
// new result and true, or the zero value and false when the call is ignored.
func (r *Registry) Record(ch types.Channel, payload string, method types.Method) (types.FoundResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.results[ch]; exists {
		return types.FoundResult{}, false
	}

	res := r.build(ch, payload, method)
	r.results[ch] = res
	r.order = append(r.order, ch)
	return res, true
}

func (r *Registry) build(ch types.Channel, payload string, method types.Method) types.FoundResult {
	var entry types.LookupEntry
	var ok bool
	if r.lookup != nil {
		entry, ok = r.lookup.Lookup(ch, payload)
	}
	if !ok {
		entry = types.LookupEntry{
			DisplayText: fmt.Sprintf("Unknown %s QR: %s", ch, payload),
			SpokenText:  fmt.Sprintf("Unknown %s QR code detected", ch.Lower()),
		}
	}
	return types.FoundResult{
		Channel:     ch,
		RawPayload:  payload,
		Method:      method,
		DisplayText: entry.DisplayText,
		SpokenText:  entry.SpokenText,
		FoundAt:     r.now(),
	}
}

// Has reports whether ch already has a result.
func (r *Registry) Has(ch types.Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.results[ch]
	return ok
}

// Len returns the number of recorded channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

// Complete reports whether every channel has a result.
func (r *Registry) Complete() bool {
	return r.Len() == len(types.Channels)
}

// Results returns the recorded results in discovery order.
func (r *Registry) Results() []types.FoundResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.FoundResult, 0, len(r.order))
	for _, ch := range r.order {
		out = append(out, r.results[ch])
	}
	return out
}

// Missing returns the channels without a result, in scan order.
func (r *Registry) Missing() []types.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Channel
	for _, ch := range types.Channels {
		if _, ok := r.results[ch]; !ok {
			out = append(out, ch)
		}
	}
	return out
}
