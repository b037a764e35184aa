package sundaews

import (
	"context"
	"errors"
	"sync"

	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/connectiondao"
	"github.com/rs/zerolog"
)

var errBoom = errors.New("boom")

// spyStore wraps a MemoryStore, counting calls and injecting failures.
type spyStore struct {
	*MemoryStore

	mu        sync.Mutex
	puts      int
	deletes   []string
	scans     int
	putErr    error
	deleteErr error
	scanErr   error
}

func newSpyStore(ids ...string) *spyStore {
	s := &spyStore{MemoryStore: NewMemoryStore()}
	for _, id := range ids {
		_ = s.MemoryStore.Put(context.Background(), connectiondao.Connection{ConnectionID: id})
	}
	return s
}

func (s *spyStore) Put(ctx context.Context, conn connectiondao.Connection) error {
	s.mu.Lock()
	s.puts++
	err := s.putErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Put(ctx, conn)
}

func (s *spyStore) Delete(ctx context.Context, connectionID string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, connectionID)
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, connectionID)
}

func (s *spyStore) ScanAll(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	s.scans++
	err := s.scanErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.ScanAll(ctx)
}

func (s *spyStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts + len(s.deletes) + s.scans
}

type sent struct {
	Endpoint     string
	ConnectionID string
	Data         string
}

// fakeChannels scripts an outcome per connection id; ids without a script
// are Delivered. Sends to ids in hangs block, ignoring their context, until
// release is closed.
type fakeChannels struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
	panics   map[string]bool
	hangs    map[string]bool
	release  chan struct{}
	sends    []sent
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{
		outcomes: map[string]Outcome{},
		panics:   map[string]bool{},
		hangs:    map[string]bool{},
		release:  make(chan struct{}),
	}
}

func (f *fakeChannels) ForEndpoint(endpoint string) Channel {
	return fakeChannel{parent: f, endpoint: endpoint}
}

func (f *fakeChannels) sentTo() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	got := map[string]string{}
	for _, s := range f.sends {
		got[s.ConnectionID] = s.Data
	}
	return got
}

func (f *fakeChannels) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type fakeChannel struct {
	parent   *fakeChannels
	endpoint string
}

func (c fakeChannel) Send(_ context.Context, connectionID string, data []byte) (Outcome, error) {
	f := c.parent
	f.mu.Lock()
	f.sends = append(f.sends, sent{Endpoint: c.endpoint, ConnectionID: connectionID, Data: string(data)})
	outcome, ok := f.outcomes[connectionID]
	shouldPanic := f.panics[connectionID]
	shouldHang := f.hangs[connectionID]
	f.mu.Unlock()

	if shouldHang {
		<-f.release
	}
	if shouldPanic {
		panic("transport exploded")
	}
	switch {
	case !ok || outcome == Delivered:
		return Delivered, nil
	case outcome == Gone:
		return Gone, errors.New("GoneException: connection is gone")
	default:
		return Failed, errors.New("throttled")
	}
}

// Probe shares the scripted outcomes with Send.
func (c fakeChannel) Probe(ctx context.Context, connectionID string) (Outcome, error) {
	return c.Send(ctx, connectionID, nil)
}

type sendOnlyChannels struct{ *fakeChannels }

func (s sendOnlyChannels) ForEndpoint(endpoint string) Channel {
	return struct{ Channel }{s.fakeChannels.ForEndpoint(endpoint)}
}

func newTestDispatcher(store Store, channels ChannelFactory) *Dispatcher {
	return &Dispatcher{
		Registry:    NewRegistry(store),
		Channels:    channels,
		Logger:      zerolog.Nop(),
		Concurrency: 4,
	}
}
