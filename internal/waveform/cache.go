package waveform

// Cache holds the few most recently rendered chunks for the current audio
// handle. Switching files invalidates the whole cache wholesale, so a stale
// chunk from a previous handle can never be served. Owned by the dispatch
// context; not safe for concurrent use.
type Cache struct {
	handleID uint64
	max      int
	order    []int // chunk indexes, least recently used first
	chunks   map[int]Chunk
}

// DefaultCacheSize bounds resident chunks. At ten seconds per chunk three is
// enough for the current window plus a neighbor each side.
const DefaultCacheSize = 3

func NewCache(max int) *Cache {
	if max < 1 {
		max = DefaultCacheSize
	}
	return &Cache{max: max, chunks: make(map[int]Chunk)}
}

// Reset drops every cached chunk and binds the cache to a new handle.
func (c *Cache) Reset(handleID uint64) {
	c.handleID = handleID
	c.order = c.order[:0]
	c.chunks = make(map[int]Chunk)
}

// Put stores a rendered chunk, evicting the least recently used one when
// full. Chunks rendered for a different handle are discarded.
func (c *Cache) Put(ch Chunk) {
	if ch.HandleID != c.handleID {
		return
	}
	if _, ok := c.chunks[ch.Index]; ok {
		c.chunks[ch.Index] = ch
		c.touch(ch.Index)
		return
	}
	for len(c.chunks) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.chunks, oldest)
	}
	c.chunks[ch.Index] = ch
	c.order = append(c.order, ch.Index)
}

// Get returns the chunk at index, marking it recently used.
func (c *Cache) Get(index int) (Chunk, bool) {
	ch, ok := c.chunks[index]
	if ok {
		c.touch(index)
	}
	return ch, ok
}

// Contains reports residency without affecting recency.
func (c *Cache) Contains(index int) bool {
	_, ok := c.chunks[index]
	return ok
}

func (c *Cache) Len() int { return len(c.chunks) }

func (c *Cache) touch(index int) {
	for i, idx := range c.order {
		if idx == index {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, index)
			return
		}
	}
}
