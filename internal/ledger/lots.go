package ledger

import "pairflow/models"

// OpenLot is a quantity still waiting to be offset.
type OpenLot struct {
	Time      int64
	Price     float64
	Quantity  int64
	Side      models.Side
	Bid       float64
	Ask       float64
	Liquidity models.Liquidity
}

// lotQueue is a ring buffer of lots. Hot instruments churn through lots
// constantly, so the backing slice is reused instead of reslicing from the front.
type lotQueue struct {
	buf  []OpenLot
	head int
	size int
}

const minQueueCap = 4

func (q *lotQueue) Len() int { return q.size }

// Front returns a pointer to the oldest lot so it can be reduced in place.
// Callers must check Len first.
func (q *lotQueue) Front() *OpenLot {
	return &q.buf[q.head]
}

func (q *lotQueue) PushBack(lot OpenLot) {
	if q.size == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.size)%len(q.buf)] = lot
	q.size++
}

func (q *lotQueue) PopFront() OpenLot {
	lot := q.buf[q.head]
	q.buf[q.head] = OpenLot{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	if q.size == 0 {
		q.head = 0
	}
	return lot
}

// Snapshot copies the lots oldest first.
func (q *lotQueue) Snapshot() []OpenLot {
	out := make([]OpenLot, q.size)
	for i := 0; i < q.size; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

func (q *lotQueue) grow() {
	newCap := len(q.buf) * 2
	if newCap < minQueueCap {
		newCap = minQueueCap
	}
	buf := make([]OpenLot, newCap)
	copy(buf, q.Snapshot())
	q.buf = buf
	q.head = 0
}
