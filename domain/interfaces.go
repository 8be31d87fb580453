package domain

// Subscription is one live event sequence. Stream delivers events until
// Unsubscribe is called or the transport shuts down for good, after which it is
// closed. A value on Resets means continuity was lost (reconnect, dropped
// buffer, resync) and events may have been missed; consumers holding derived
// state must refresh it from a snapshot.
type Subscription[T any] struct {
	Stream      chan T
	Resets      chan struct{}
	Topic       string
	Unsubscribe func()
}

// SnapshotAPI is the request/response dependency of the orderbook maintainer.
type SnapshotAPI interface {
	OrderBookSnapshot(asset AssetIdentifier) (*OrderBookSnapshot, error)
}

// DepthStreamAPI is the streaming dependency of the orderbook maintainer.
type DepthStreamAPI interface {
	DepthDiffStream(asset AssetIdentifier) (*Subscription[*OrderBookDiff], error)
}
