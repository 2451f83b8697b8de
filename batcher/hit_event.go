package batcher

import "clipshare/models"

// HitEvent represents Delta views of a clip.
type HitEvent struct {
	ShortCode models.ShortCode
	Delta     uint32
}

type msgKind int

const (
	msgHit msgKind = iota
	msgCommit
	msgSnapshot
)

// message is what travels through the inbox. Hits and commits share the channel so a
// commit always sees every hit enqueued before it.
type message struct {
	kind     msgKind
	hit      HitEvent
	reply    chan error
	snapshot chan AggregatedCount
}
