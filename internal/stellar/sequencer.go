package stellar

import (
	"sync"
)

// accountSequencer serializes submissions for one source account and carries
// its cached sequence number between them.
type accountSequencer struct {
	mu       sync.Mutex
	loaded   bool
	sequence int64
}

// SequencerCache hands out one sequencer per source account, created lazily
// on first use and kept for the life of the process.
type SequencerCache struct {
	mu       sync.Mutex
	accounts map[string]*accountSequencer
}

// NewSequencerCache creates an empty sequencer cache.
func NewSequencerCache() *SequencerCache {
	return &SequencerCache{
		accounts: make(map[string]*accountSequencer),
	}
}

func (c *SequencerCache) forAccount(address string) *accountSequencer {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.accounts[address]
	if !ok {
		s = &accountSequencer{}
		c.accounts[address] = s
	}
	return s
}

// Submit runs one submission for the given source account while holding its
// sequencer. The sequence number is fetched through load on first use, handed
// to submit, and advanced locally only when submit succeeds. A bad-sequence
// rejection drops the cached value so the next submission re-queries the
// remote.
func (c *SequencerCache) Submit(address string, load func() (int64, error), submit func(sequence int64) error) error {
	s := c.forAccount(address)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		sequence, err := load()
		if err != nil {
			return err
		}
		s.sequence = sequence
		s.loaded = true
	}

	if err := submit(s.sequence); err != nil {
		if isBadSequence(err) {
			s.loaded = false
		}
		return err
	}

	s.sequence++
	return nil
}

// Evict drops the cached sequence for an account. Used when an account is
// removed from the ledger so a recreated account starts fresh.
func (c *SequencerCache) Evict(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, address)
}
