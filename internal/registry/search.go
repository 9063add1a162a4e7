package registry

import (
	"context"
	"sync"
	"time"

	"github.com/jask/reconsole/internal/api"
)

// DebounceQuiet is how long the search input must settle before a query is
// issued.
const DebounceQuiet = 300 * time.Millisecond

// Debouncer tracks input generations for keystroke debouncing. Each Touch
// invalidates earlier generations; the caller schedules a delayed check and
// only fires the query if its generation is still current.
type Debouncer struct {
	mu      sync.Mutex
	version int
}

// Touch registers a new input event and returns its generation.
func (d *Debouncer) Touch() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version++
	return d.version
}

// Current reports whether v is still the latest generation.
func (d *Debouncer) Current(v int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return v == d.version
}

// Searcher issues paginated search queries and discards responses that
// resolve after a newer query has already been applied. The transport gives
// no ordering guarantee, so every request carries a sequence number and
// stale results are dropped instead of cancelled.
type Searcher struct {
	client *Client

	mu      sync.Mutex
	query   string
	limit   int
	offset  int
	seq     uint64
	applied uint64
}

// Result is one tagged search response.
type Result struct {
	Query string
	Page  api.Page[DataSource]
	seq   uint64
}

func NewSearcher(client *Client, limit int) *Searcher {
	if limit <= 0 {
		limit = 10
	}
	return &Searcher{client: client, limit: limit}
}

// SetQuery updates the effective query. Pagination resets to the first page
// whenever the search text changes.
func (s *Searcher) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q != s.query {
		s.query = q
		s.offset = 0
	}
}

// SetOffset moves to another page of the current query.
func (s *Searcher) SetOffset(offset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	s.offset = offset
}

// Query returns the current effective query text.
func (s *Searcher) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Run executes a search for the current query/page, tagged with a fresh
// sequence number.
func (s *Searcher) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	s.seq++
	r := Result{Query: s.query, seq: s.seq}
	limit, offset := s.limit, s.offset
	s.mu.Unlock()

	page, err := s.client.Search(ctx, r.Query, limit, offset)
	if err != nil {
		return Result{}, err
	}
	r.Page = page
	return r, nil
}

// Apply reports whether res should be displayed. A result loses when a
// response issued after it has already been applied.
func (s *Searcher) Apply(res Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.seq < s.applied {
		return false
	}
	s.applied = res.seq
	return true
}
