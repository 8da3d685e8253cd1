package application

import (
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestRespawnQueue_PopDueInTimeOrder(t *testing.T) {
	q := NewRespawnQueue()
	t0 := time.UnixMilli(0)
	q.Schedule("c", t0.Add(3*time.Second))
	q.Schedule("a", t0.Add(1*time.Second))
	q.Schedule("b", t0.Add(2*time.Second))

	next, ok := q.Next()
	if !ok || !next.Equal(t0.Add(time.Second)) {
		t.Fatalf("Next = %v, %v", next, ok)
	}
	if got := q.PopDue(t0.Add(500 * time.Millisecond)); len(got) != 0 {
		t.Errorf("PopDue before deadline = %v", got)
	}
	if got := q.PopDue(t0.Add(2 * time.Second)); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("PopDue = %v, want [a b]", got)
	}
	if q.Len() != 1 || !q.Scheduled("c") || q.Scheduled("a") {
		t.Errorf("remaining queue is wrong: len=%d", q.Len())
	}
}

func TestRespawnQueue_CancelAndReschedule(t *testing.T) {
	q := NewRespawnQueue()
	t0 := time.UnixMilli(0)
	q.Schedule("a", t0.Add(time.Second))
	q.Schedule("b", t0.Add(2*time.Second))

	if !q.Cancel("a") {
		t.Fatal("Cancel should succeed")
	}
	if q.Cancel("a") {
		t.Error("second Cancel should be a no-op")
	}
	// 再予約は時刻を上書きし、件数は増えない
	q.Schedule("b", t0.Add(5*time.Second))
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}
	if got := q.PopDue(t0.Add(4 * time.Second)); len(got) != 0 {
		t.Errorf("PopDue = %v, want none", got)
	}
	if got := q.PopDue(t0.Add(5 * time.Second)); !slices.Equal(got, []string{"b"}) {
		t.Errorf("PopDue = %v, want [b]", got)
	}
	if _, ok := q.Next(); ok {
		t.Error("queue should be empty")
	}
}

func TestRespawnQueue_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := NewRespawnQueue()
		want := make(map[string]int64)
		ids := []string{"a", "b", "c", "d", "e"}

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for range steps {
			id := rapid.SampledFrom(ids).Draw(t, "id")
			if rapid.Bool().Draw(t, "cancel") {
				_, had := want[id]
				if q.Cancel(id) != had {
					t.Fatalf("Cancel(%s) disagreed with model", id)
				}
				delete(want, id)
				continue
			}
			at := rapid.Int64Range(0, 10_000).Draw(t, "at")
			q.Schedule(id, time.UnixMilli(at))
			want[id] = at
		}
		if q.Len() != len(want) {
			t.Fatalf("Len = %d, want %d", q.Len(), len(want))
		}

		now := rapid.Int64Range(0, 10_000).Draw(t, "now")
		due := q.PopDue(time.UnixMilli(now))
		last := int64(-1)
		for _, id := range due {
			at, ok := want[id]
			if !ok {
				t.Fatalf("popped unscheduled %s", id)
			}
			if at > now {
				t.Fatalf("popped %s at %d after now %d", id, at, now)
			}
			if at < last {
				t.Fatalf("popped out of order")
			}
			last = at
			delete(want, id)
		}
		for id, at := range want {
			if at <= now {
				t.Fatalf("%s due at %d was not popped at %d", id, at, now)
			}
		}
	})
}
