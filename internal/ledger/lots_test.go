package ledger

import "testing"

func TestLotQueueWrapsAndGrows(t *testing.T) {
	var q lotQueue
	for i := 0; i < 3; i++ {
		q.PushBack(OpenLot{Time: int64(i), Quantity: 1})
	}
	q.PopFront()
	q.PopFront()
	for i := 3; i < 10; i++ {
		q.PushBack(OpenLot{Time: int64(i), Quantity: 1})
	}
	if q.Len() != 8 {
		t.Fatalf("expected 8 lots, got %d", q.Len())
	}
	snap := q.Snapshot()
	for i, lot := range snap {
		if lot.Time != int64(i+2) {
			t.Fatalf("lot %d has time %d, want %d", i, lot.Time, i+2)
		}
	}
	q.Front().Quantity = 42
	if got := q.PopFront(); got.Quantity != 42 || got.Time != 2 {
		t.Fatalf("front not updated in place: %+v", got)
	}
}

func TestLotQueueResetsHeadWhenEmpty(t *testing.T) {
	var q lotQueue
	q.PushBack(OpenLot{Time: 1})
	q.PopFront()
	if q.head != 0 || q.Len() != 0 {
		t.Fatalf("expected reset queue, head=%d len=%d", q.head, q.Len())
	}
}
