package relay

// RecencyCache is a fixed-capacity set of recently forwarded message IDs
// with strict FIFO eviction. Reads never refresh an entry.
//
// It is not safe for concurrent use; the Controller guards it.
type RecencyCache struct {
	ring     []string
	head     int // index of the oldest entry
	size     int
	counts   map[string]int
	capacity int
}

func NewRecencyCache(capacity int) *RecencyCache {
	if capacity < 1 {
		capacity = 1
	}
	return &RecencyCache{
		ring:     make([]string, capacity),
		counts:   make(map[string]int, capacity),
		capacity: capacity,
	}
}

// Contains reports whether id was inserted and has not been evicted yet.
func (c *RecencyCache) Contains(id string) bool {
	return c.counts[id] > 0
}

// Insert appends id, evicting the oldest entry first when the cache is full.
// Inserting an id twice stores it twice.
func (c *RecencyCache) Insert(id string) {
	if c.size == c.capacity {
		c.evictOldest()
	}
	tail := (c.head + c.size) % c.capacity
	c.ring[tail] = id
	c.size++
	c.counts[id]++
}

func (c *RecencyCache) evictOldest() {
	oldest := c.ring[c.head]
	c.ring[c.head] = ""
	c.head = (c.head + 1) % c.capacity
	c.size--

	if c.counts[oldest] <= 1 {
		delete(c.counts, oldest)
	} else {
		c.counts[oldest]--
	}
}

func (c *RecencyCache) Len() int {
	return c.size
}

func (c *RecencyCache) Capacity() int {
	return c.capacity
}

// Snapshot returns the entries oldest first.
func (c *RecencyCache) Snapshot() []string {
	out := make([]string, 0, c.size)
	for i := 0; i < c.size; i++ {
		out = append(out, c.ring[(c.head+i)%c.capacity])
	}
	return out
}
