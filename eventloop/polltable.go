package eventloop

// pollTable is the descriptor poll table: a dense, fixed-capacity slice of
// registrations, which may contain holes (FD == 0) between waits.
//
// Holes are only ever created by listen, and are squeezed out by compact,
// which the loop calls before each wait. Entries are never reordered, so
// indices stay stable while handlers run.
type pollTable struct {
	entries []Registration
}

func newPollTable(capacity int) pollTable {
	return pollTable{entries: make([]Registration, 0, capacity)}
}

// listen registers, updates, or (if interest is zero) logically removes fd.
func (p *pollTable) listen(fd int, interest IOEvents) error {
	for i := range p.entries {
		if p.entries[i].FD != fd {
			continue
		}
		if interest == 0 {
			// mark to-be-deleted, cleaned up by the next compact
			p.entries[i].FD = 0
		} else {
			p.entries[i].Interest = interest
		}
		return nil
	}

	if interest == 0 {
		return nil
	}

	if len(p.entries) >= cap(p.entries) {
		return errDescriptorCapacity()
	}
	p.entries = append(p.entries, Registration{FD: fd, Interest: interest})
	return nil
}

// compact removes unused slots, preserving the order of the survivors.
// Returns the number of entries removed.
func (p *pollTable) compact() int {
	j := 0
	for i := range p.entries {
		if p.entries[i].FD == 0 {
			continue
		}
		if i != j {
			// copy only if indices have diverged
			p.entries[j] = p.entries[i]
		}
		j++
	}
	removed := len(p.entries) - j
	clear(p.entries[j:])
	p.entries = p.entries[:j]
	return removed
}

// len returns the number of slots in use, including holes.
func (p *pollTable) len() int {
	return len(p.entries)
}

// live returns the number of registered descriptors, excluding holes.
func (p *pollTable) live() int {
	var n int
	for i := range p.entries {
		if p.entries[i].FD != 0 {
			n++
		}
	}
	return n
}
