package chain

import (
	"context"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ChannelSource is an in-memory NotificationSource fed through Send. It backs replays, synthetic
// streams and tests.
type ChannelSource struct {
	ch        chan *Notification
	closeOnce sync.Once

	mu             sync.Mutex
	acked          bool
	finishedHeight uint64
	finishedHash   common.Hash
	acks           []uint64
}

func NewChannelSource(size int) *ChannelSource {
	return &ChannelSource{ch: make(chan *Notification, size)}
}

func (s *ChannelSource) Send(ctx context.Context, n *Notification) error {
	select {
	case s.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream; Next returns io.EOF once the buffered notifications are drained.
func (s *ChannelSource) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

func (s *ChannelSource) Next(ctx context.Context) (*Notification, error) {
	select {
	case n, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ChannelSource) FinishedHeight(_ context.Context, height uint64, hash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = true
	s.finishedHeight = height
	s.finishedHash = hash
	s.acks = append(s.acks, height)
	return nil
}

// Finished returns the last acknowledged height and hash.
func (s *ChannelSource) Finished() (uint64, common.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedHeight, s.finishedHash, s.acked
}

// Acks returns every acknowledged height in order.
func (s *ChannelSource) Acks() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	acks := make([]uint64, len(s.acks))
	copy(acks, s.acks)
	return acks
}
