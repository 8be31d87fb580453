package domain

import (
	"sort"
	"sync"
	"time"
)

// OrderBookSnapshot is a full point-in-time book state as returned by the
// market depth endpoint. Levels are [price, quantity] pairs in scaled book
// integers.
type OrderBookSnapshot struct {
	Bids           [][]int64 `json:"bids"`
	Asks           [][]int64 `json:"asks"`
	SequenceNumber int64     `json:"sequence_number"`
}

// OrderBookDiff is one incremental, sequence-numbered update from the depth
// diff stream. A level with quantity 0 removes that price.
type OrderBookDiff struct {
	Bids           [][]int64 `json:"bids"`
	Asks           [][]int64 `json:"asks"`
	SequenceNumber int64     `json:"sequence_number"`
}

// OrderBook is the authoritative local view of one asset's book: snapshot plus
// every diff applied in sequence order. It is owned by a single
// OrderbookMaintainer; the mutex only guards readers taking snapshots against
// that one writer.
type OrderBook struct {
	Asset          AssetIdentifier
	Bids           [][]int64
	Asks           [][]int64
	SequenceNumber int64
	LastUpdateTime int64

	updateMx sync.Mutex
}

func NewOrderBook(asset AssetIdentifier, snapshot *OrderBookSnapshot) *OrderBook {
	ob := &OrderBook{
		Asset:          asset,
		Bids:           copyLevels(snapshot.Bids),
		Asks:           copyLevels(snapshot.Asks),
		SequenceNumber: snapshot.SequenceNumber,
		LastUpdateTime: time.Now().Unix(),
	}

	ob.sortSides()
	return ob
}

// ApplyDiff validates the diff against the current sequence number and applies
// it. A duplicate returns ErrOrderBookUpdateIsOutdated, a gap returns
// ErrOrderBookUpdateIsOutOfSequence; in both cases the book is left untouched.
func (ob *OrderBook) ApplyDiff(diff *OrderBookDiff) error {
	ob.updateMx.Lock()
	defer ob.updateMx.Unlock()

	if diff.SequenceNumber <= ob.SequenceNumber {
		return ErrOrderBookUpdateIsOutdated
	}
	if diff.SequenceNumber > ob.SequenceNumber+1 {
		return ErrOrderBookUpdateIsOutOfSequence
	}

	ob.SequenceNumber = diff.SequenceNumber
	ob.LastUpdateTime = time.Now().Unix()

	ob.Asks = updateDepth(ob.Asks, diff.Asks, true)
	ob.Bids = updateDepth(ob.Bids, diff.Bids, false)
	return nil
}

// TakeSnapshot copies the current state. limit > 0 truncates each side to the
// top levels.
func (ob *OrderBook) TakeSnapshot(limit int) *OrderBookSnapshot {
	ob.updateMx.Lock()
	defer ob.updateMx.Unlock()

	bids := limitDepth(copyLevels(ob.Bids), limit)
	asks := limitDepth(copyLevels(ob.Asks), limit)

	return &OrderBookSnapshot{
		Bids:           bids,
		Asks:           asks,
		SequenceNumber: ob.SequenceNumber,
	}
}

func (ob *OrderBook) sortSides() {
	sort.Slice(ob.Asks, func(i, j int) bool {
		return ob.Asks[i][0] < ob.Asks[j][0]
	})
	sort.Slice(ob.Bids, func(i, j int) bool {
		return ob.Bids[i][0] > ob.Bids[j][0]
	})
}

func limitDepth(depth [][]int64, limit int) [][]int64 {
	if limit > 0 && len(depth) > limit {
		return depth[:limit]
	}
	return depth
}

func updateDepth(depth [][]int64, changes [][]int64, isAsks bool) [][]int64 {
	for _, level := range changes {
		price := level[0]
		quantity := level[1]

		if quantity == 0 {
			// remove price level
			for i, l := range depth {
				if l[0] == price {
					depth[i] = depth[len(depth)-1]
					depth = depth[:len(depth)-1]
					break
				}
			}
			continue
		}

		// if price level exists, update quantity, otherwise add it
		updated := false
		for i, l := range depth {
			if l[0] == price {
				depth[i][1] = quantity
				updated = true
				break
			}
		}
		if !updated {
			depth = append(depth, []int64{price, quantity})
		}
	}

	if isAsks {
		sort.Slice(depth, func(i, j int) bool {
			return depth[i][0] < depth[j][0]
		})
	} else {
		sort.Slice(depth, func(i, j int) bool {
			return depth[i][0] > depth[j][0]
		})
	}

	return depth
}

func copyLevels(depth [][]int64) [][]int64 {
	result := make([][]int64, len(depth))
	for i, level := range depth {
		result[i] = []int64{level[0], level[1]}
	}
	return result
}
