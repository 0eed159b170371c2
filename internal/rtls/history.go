package rtls

// History is a fixed-capacity ring buffer of room determinations. Once full,
// each push overwrites the oldest entry.
type History struct {
	buf   []string
	start int
	size  int
}

// NewHistory returns an empty window holding at most capacity entries.
// Capacities below MinWindow are raised to MinWindow.
func NewHistory(capacity int) *History {
	if capacity < MinWindow {
		capacity = MinWindow
	}
	return &History{buf: make([]string, capacity)}
}

// Push appends a determination, evicting the oldest when full.
func (h *History) Push(room string) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = room
		h.size++
		return
	}
	h.buf[h.start] = room
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored determinations.
func (h *History) Len() int { return h.size }

// Cap returns the window size.
func (h *History) Cap() int { return len(h.buf) }

// Last returns the newest determination, or "" when empty.
func (h *History) Last() string {
	if h.size == 0 {
		return ""
	}
	return h.at(h.size - 1)
}

// Snapshot returns a copy of the window, oldest first.
func (h *History) Snapshot() []string {
	out := make([]string, h.size)
	for i := range out {
		out[i] = h.at(i)
	}
	return out
}

// Streak counts how many of the newest entries equal the newest entry.
func (h *History) Streak() int {
	if h.size == 0 {
		return 0
	}
	last := h.Last()
	n := 0
	for i := h.size - 1; i >= 0 && h.at(i) == last; i-- {
		n++
	}
	return n
}

// Agreement returns the fraction of the window equal to the newest entry.
func (h *History) Agreement() float64 {
	if h.size == 0 {
		return 0
	}
	last := h.Last()
	n := 0
	for i := 0; i < h.size; i++ {
		if h.at(i) == last {
			n++
		}
	}
	return float64(n) / float64(h.size)
}

func (h *History) at(i int) string {
	return h.buf[(h.start+i)%len(h.buf)]
}
