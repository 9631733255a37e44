package neom8

// bufferCapacity is the size of the receive window. The NEO-M8 emits a full
// NMEA burst well inside 512 bytes at any supported output rate, so one
// window always spans at least one complete sentence.
const bufferCapacity = 512

// window is a fixed-capacity sliding byte buffer over the serial stream.
// When full it discards the oldest bytes so the most recent data is always
// retained, even if that cuts a partially-received sentence in half — a lost
// sentence is re-acquired on the next cycle, stale data never is.
type window struct {
	data []byte // len = bytes held, cap = fixed capacity
}

func newWindow(capacity int) *window {
	return &window{data: make([]byte, 0, capacity)}
}

// feed appends p, sliding the window forward if the result would exceed
// capacity. If p alone is larger than the capacity, only its trailing
// capacity bytes are kept and the previous contents are discarded entirely.
func (w *window) feed(p []byte) {
	c := cap(w.data)
	if len(p) >= c {
		w.data = w.data[:c]
		copy(w.data, p[len(p)-c:])
		return
	}
	if overflow := len(w.data) + len(p) - c; overflow > 0 {
		copy(w.data, w.data[overflow:])
		w.data = w.data[:len(w.data)-overflow]
	}
	w.data = append(w.data, p...)
}

// consume drops the first n bytes, typically a parsed or rejected frame.
func (w *window) consume(n int) {
	if n <= 0 {
		return
	}
	if n >= len(w.data) {
		w.data = w.data[:0]
		return
	}
	copy(w.data, w.data[n:])
	w.data = w.data[:len(w.data)-n]
}

// bytes returns a view of the current contents. The view is invalidated by
// the next feed or consume, so callers must copy out anything they keep.
func (w *window) bytes() []byte { return w.data }

func (w *window) len() int { return len(w.data) }
