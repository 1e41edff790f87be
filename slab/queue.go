package slab

// queue is an intrusive doubly linked list of blocks. Links live in the block
// itself, so membership changes never allocate. A block is a member of at
// most one queue at a time, recorded in block.queue.
type queue struct {
	head *block
	tail *block
	n    int
}

// enqueue appends b at the tail.
func (q *queue) enqueue(b *block) {
	if b.queue != nil {
		panic("slab: block already queued")
	}
	b.queue = q
	b.prev = q.tail
	b.next = nil
	if q.tail != nil {
		q.tail.next = b
	} else {
		q.head = b
	}
	q.tail = b
	q.n++
}

// dequeue removes and returns the head, or nil when empty.
func (q *queue) dequeue() *block {
	b := q.head
	if b != nil {
		q.pop(b)
	}
	return b
}

// peek returns the head without removing it.
func (q *queue) peek() *block {
	return q.head
}

// pop unlinks b. Reports false when b is not a member of q.
func (q *queue) pop(b *block) bool {
	if b.queue != q {
		return false
	}
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		q.head = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		q.tail = b.prev
	}
	b.next, b.prev, b.queue = nil, nil, nil
	q.n--
	return true
}

func (q *queue) len() int { return q.n }

func (q *queue) contains(b *block) bool { return b.queue == q }
