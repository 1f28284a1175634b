package coordinator

import (
	"errors"
	"fmt"
	"time"
)

var ErrAlreadyQueued = errors.New("already in queue")

// QueueKey identifies a bucket; only players with identical keys are paired.
type QueueKey struct {
	Mode    Mode
	Setting int
}

func (k QueueKey) String() string {
	return fmt.Sprintf("%s/%d", k.Mode, k.Setting)
}

type QueueEntry struct {
	Player   Player    `json:"player"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Queue holds waiting players in FIFO buckets. It has no locking of its own;
// the coordinator goroutine is its only user.
type Queue struct {
	buckets map[QueueKey][]QueueEntry
}

func NewQueue() *Queue {
	return &Queue{buckets: make(map[QueueKey][]QueueEntry)}
}

// Enqueue appends the entry to its bucket. A player already waiting in any
// bucket is rejected with ErrAlreadyQueued. When the bucket reaches two
// entries the two oldest are removed and returned with paired set.
func (q *Queue) Enqueue(key QueueKey, entry QueueEntry) (pair [2]QueueEntry, paired bool, err error) {
	if _, _, ok := q.Find(entry.Player.ID); ok {
		return pair, false, ErrAlreadyQueued
	}

	bucket := append(q.buckets[key], entry)
	if len(bucket) < 2 {
		q.buckets[key] = bucket
		return pair, false, nil
	}

	pair = [2]QueueEntry{bucket[0], bucket[1]}
	q.set(key, bucket[2:])
	return pair, true, nil
}

// Remove drops the player from whichever bucket holds them. Removing an absent
// player is a no-op and returns false.
func (q *Queue) Remove(playerID string) bool {
	key, _, ok := q.Find(playerID)
	if !ok {
		return false
	}
	bucket := q.buckets[key]
	kept := make([]QueueEntry, 0, len(bucket)-1)
	for _, e := range bucket {
		if e.Player.ID != playerID {
			kept = append(kept, e)
		}
	}
	q.set(key, kept)
	return true
}

func (q *Queue) Find(playerID string) (QueueKey, QueueEntry, bool) {
	for key, bucket := range q.buckets {
		for _, e := range bucket {
			if e.Player.ID == playerID {
				return key, e, true
			}
		}
	}
	return QueueKey{}, QueueEntry{}, false
}

func (q *Queue) Len(key QueueKey) int {
	return len(q.buckets[key])
}

// Size is the number of waiting players across all buckets.
func (q *Queue) Size() int {
	n := 0
	for _, bucket := range q.buckets {
		n += len(bucket)
	}
	return n
}

// Buckets returns a copy of every non-empty bucket.
func (q *Queue) Buckets() map[QueueKey][]QueueEntry {
	out := make(map[QueueKey][]QueueEntry, len(q.buckets))
	for key, bucket := range q.buckets {
		out[key] = append([]QueueEntry(nil), bucket...)
	}
	return out
}

func (q *Queue) set(key QueueKey, bucket []QueueEntry) {
	if len(bucket) == 0 {
		delete(q.buckets, key)
		return
	}
	q.buckets[key] = bucket
}
