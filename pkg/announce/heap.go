package announce

// entry adds the insertion sequence used to keep FIFO order when two
// announcements share a priority and a creation time.
type entry struct {
	a   Announcement
	seq uint64
}

// queue implements container/heap.Interface: highest priority first, then
// earliest creation, then insertion order.
type queue []entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	a, b := q[i].a, q[j].a
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

// Push is called by container/heap only.
func (q *queue) Push(x any) {
	*q = append(*q, x.(entry))
}

// Pop is called by container/heap only.
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}
