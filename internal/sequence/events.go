package sequence

// Event describes a load transition of one sequence.
type Event struct {
	Count      int    // Number of items in the sequence
	SequenceID string // Registry key of the sequence
}

type listener struct {
	id int
	fn func(Event)
}

// listeners is an ordered observer list. Delivery is synchronous and in
// subscription order.
type listeners struct {
	nextID int
	list   []listener
}

func (l *listeners) add(fn func(Event)) func() {
	l.nextID++
	id := l.nextID
	l.list = append(l.list, listener{id: id, fn: fn})

	return func() {
		for i, ln := range l.list {
			if ln.id == id {
				l.list = append(l.list[:i:i], l.list[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners) emit(ev Event) {
	// Snapshot so handlers may unsubscribe while being notified.
	snapshot := append([]listener(nil), l.list...)
	for _, ln := range snapshot {
		ln.fn(ev)
	}
}

func (l *listeners) len() int {
	return len(l.list)
}
