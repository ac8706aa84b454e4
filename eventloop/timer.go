package eventloop

// TimerID identifies a timer. Zero is never a valid id.
type TimerID uint64

// Timer is a timer record, as held by the timer table.
type Timer struct {
	// ID is assigned at creation, starting at 1, and never reused.
	ID TimerID
	// Target is the absolute expiry time, in [Clock] milliseconds.
	Target float64
	// Delay is the (clamped) delay or interval, in milliseconds.
	Delay float64
	// Oneshot is true for timeouts, false for intervals.
	Oneshot bool
	// removed is only meaningful while the timer occupies the expiry cursor
	removed bool
}

// timerTable is a fixed-capacity dense list of timers, sorted by descending
// Target, i.e. the earliest expiry is always the last entry.
//
// Insertion is O(n) (append then bubble backwards), which is acceptable at
// the bounded scale this loop targets, and cheap in practice because new
// timers tend to expire later than existing ones.
type timerTable struct {
	list []Timer
}

func newTimerTable(capacity int) timerTable {
	return timerTable{list: make([]Timer, 0, capacity)}
}

func (t *timerTable) full() bool {
	return len(t.list) >= cap(t.list)
}

// insert appends the timer and bubbles it to its sorted position.
// The caller must check full first.
func (t *timerTable) insert(timer Timer) {
	t.list = append(t.list, timer)
	t.bubbleLast()
}

// bubbleLast moves the last timer backwards until it is in sorted position.
func (t *timerTable) bubbleLast() {
	for i := len(t.list) - 1; i > 0; i-- {
		// timer to bubble is at index i, timer to compare to is at i-1
		if t.list[i].Target <= t.list[i-1].Target {
			// expires earlier than (or same time as) i-1, done
			break
		}
		t.list[i], t.list[i-1] = t.list[i-1], t.list[i]
	}
}

// nearest returns the timer that expires first, if any.
func (t *timerTable) nearest() (*Timer, bool) {
	if len(t.list) == 0 {
		return nil, false
	}
	return &t.list[len(t.list)-1], true
}

// popNearest removes and returns the timer that expires first.
// The caller must check the table is not empty.
func (t *timerTable) popNearest() Timer {
	last := len(t.list) - 1
	timer := t.list[last]
	t.list[last] = Timer{}
	t.list = t.list[:last]
	return timer
}

// remove deletes the timer with the given id, shifting later entries down
// to keep the list dense and sorted. Reports whether it was found.
func (t *timerTable) remove(id TimerID) bool {
	for i := range t.list {
		if t.list[i].ID != id {
			continue
		}
		last := len(t.list) - 1
		copy(t.list[i:], t.list[i+1:])
		t.list[last] = Timer{}
		t.list = t.list[:last]
		return true
	}
	return false
}

func (t *timerTable) len() int {
	return len(t.list)
}

// expiryCursor holds the timer whose callback is currently running, outside
// of the table, so that table mutations made by the callback (including
// deleting this very timer) cannot disturb it.
type expiryCursor struct {
	timer Timer
	ok    bool
}

// occupant returns the expiring timer, if any.
func (c *expiryCursor) occupant() (*Timer, bool) {
	if !c.ok {
		return nil, false
	}
	return &c.timer, true
}

func (c *expiryCursor) set(timer Timer) {
	c.timer = timer
	c.ok = true
}

func (c *expiryCursor) take() Timer {
	timer := c.timer
	c.timer = Timer{}
	c.ok = false
	return timer
}
