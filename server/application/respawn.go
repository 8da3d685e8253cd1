package application

import (
	"container/heap"
	"time"
)

// RespawnQueue はプレイヤーIDをキーにした遅延キューです。
// 1プレイヤーにつき予約は1件で、再予約は時刻を上書きします。
type RespawnQueue struct {
	h    respawnHeap
	byID map[string]*respawnEntry
}

type respawnEntry struct {
	playerID string
	at       time.Time
	seq      uint64
	index    int
}

func NewRespawnQueue() *RespawnQueue {
	return &RespawnQueue{byID: make(map[string]*respawnEntry)}
}

func (q *RespawnQueue) Schedule(playerID string, at time.Time) {
	if e, ok := q.byID[playerID]; ok {
		e.at = at
		heap.Fix(&q.h, e.index)
		return
	}
	e := &respawnEntry{playerID: playerID, at: at, seq: q.h.seq}
	q.h.seq++
	heap.Push(&q.h, e)
	q.byID[playerID] = e
}

// Cancel は予約を取り消します。予約がなければ false です。
func (q *RespawnQueue) Cancel(playerID string) bool {
	e, ok := q.byID[playerID]
	if !ok {
		return false
	}
	heap.Remove(&q.h, e.index)
	delete(q.byID, playerID)
	return true
}

func (q *RespawnQueue) Scheduled(playerID string) bool {
	_, ok := q.byID[playerID]
	return ok
}

// Next は最も早い予約時刻を返します。
func (q *RespawnQueue) Next() (time.Time, bool) {
	if len(q.h.entries) == 0 {
		return time.Time{}, false
	}
	return q.h.entries[0].at, true
}

// PopDue は now までに期限を迎えた予約を時刻順に取り出します。
func (q *RespawnQueue) PopDue(now time.Time) []string {
	var due []string
	for len(q.h.entries) > 0 && !q.h.entries[0].at.After(now) {
		e := heap.Pop(&q.h).(*respawnEntry)
		delete(q.byID, e.playerID)
		due = append(due, e.playerID)
	}
	return due
}

func (q *RespawnQueue) Len() int {
	return len(q.h.entries)
}

// respawnHeap は heap.Interface の実装です。同時刻は予約順。
type respawnHeap struct {
	entries []*respawnEntry
	seq     uint64
}

func (h respawnHeap) Len() int { return len(h.entries) }

func (h respawnHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.at.Equal(b.at) {
		return a.seq < b.seq
	}
	return a.at.Before(b.at)
}

func (h respawnHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *respawnHeap) Push(x any) {
	e := x.(*respawnEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *respawnHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	h.entries = old[:n-1]
	return e
}
