package chain

import (
	"sort"

	"github.com/ethereum/go-ethereum/core/types"
)

type Kind int

const (
	Committed Kind = iota
	Reorged
	Reverted
)

func (k Kind) String() string {
	switch k {
	case Committed:
		return "committed"
	case Reorged:
		return "reorged"
	case Reverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Segment is a contiguous run of blocks ordered by ascending number.
type Segment struct {
	Blocks []*types.Block
}

func NewSegment(blocks ...*types.Block) *Segment {
	sorted := make([]*types.Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NumberU64() < sorted[j].NumberU64()
	})
	return &Segment{Blocks: sorted}
}

func (s *Segment) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Blocks)
}

// Tip returns the highest block of the segment, nil if empty.
func (s *Segment) Tip() *types.Block {
	if s.Len() == 0 {
		return nil
	}
	return s.Blocks[len(s.Blocks)-1]
}

func (s *Segment) Range() (uint64, uint64) {
	if s.Len() == 0 {
		return 0, 0
	}
	return s.Blocks[0].NumberU64(), s.Tip().NumberU64()
}

type Notification struct {
	Kind Kind
	Old  *Segment
	New  *Segment
}

func NewCommitted(newChain *Segment) *Notification {
	return &Notification{Kind: Committed, New: newChain}
}

func NewReorged(oldChain, newChain *Segment) *Notification {
	return &Notification{Kind: Reorged, Old: oldChain, New: newChain}
}

func NewReverted(oldChain *Segment) *Notification {
	return &Notification{Kind: Reverted, Old: oldChain}
}

// CommittedChain returns the segment that became canonical, nil for Reverted.
func (n *Notification) CommittedChain() *Segment {
	if n.Kind == Reverted {
		return nil
	}
	return n.New
}

// RevertedChain returns the segment that stopped being canonical, nil for Committed.
func (n *Notification) RevertedChain() *Segment {
	if n.Kind == Committed {
		return nil
	}
	return n.Old
}
