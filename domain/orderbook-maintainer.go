package domain

import (
	"sync"

	"github.com/gammazero/deque"
	log "github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-exchange-client/infrastructure/promclient"
)

type MaintainerState string

const (
	StateUnsynced     MaintainerState = "Unsynced"
	StateSnapshotting MaintainerState = "Snapshotting"
	StateLive         MaintainerState = "Live"
	StateResyncing    MaintainerState = "Resyncing"
)

// why the live phase ended
type liveOutcome int

const (
	outcomeClosed liveOutcome = iota
	outcomeGap
	outcomeReset
)

// OrderbookMaintainer keeps the local book of one asset consistent with the
// remote one. It merges a REST snapshot with the sequence-numbered diff stream
// and walks the state machine
//
//	Unsynced -> Snapshotting -> Live -> (gap) Resyncing -> Live | Unsynced.
//
// While Live it emits a materialized book state per applied diff; while not
// Live it emits nothing, so a consumer never observes a book that is known to
// have missed an update. Duplicates are discarded, a gap forces a fresh
// snapshot, and after maxResyncAttempts consecutive failures the output stream
// is closed with a terminal error.
type OrderbookMaintainer struct {
	asset     AssetIdentifier
	syncAPI   SnapshotAPI
	streamAPI DepthStreamAPI

	maxResyncAttempts int
	emitBufferSize    int

	book    *OrderBook
	queue   deque.Deque[*OrderBookDiff]
	diffSub *Subscription[*OrderBookDiff]
	out     *Subscription[*OrderBookSnapshot]

	mu    sync.Mutex
	state MaintainerState
	err   error

	done      chan struct{}
	closeOnce sync.Once

	logger *log.Entry
}

func NewOrderbookMaintainer(
	asset AssetIdentifier,
	syncAPI SnapshotAPI,
	streamAPI DepthStreamAPI,
	maxResyncAttempts int,
	emitBufferSize int,
) *OrderbookMaintainer {
	return &OrderbookMaintainer{
		asset:             asset,
		syncAPI:           syncAPI,
		streamAPI:         streamAPI,
		maxResyncAttempts: maxResyncAttempts,
		emitBufferSize:    emitBufferSize,
		state:             StateUnsynced,
		done:              make(chan struct{}),
		logger:            log.WithField("component", "orderbook-maintainer").WithField("asset", asset.String()),
	}
}

// Start subscribes to the diff stream and begins reconciling. The returned
// subscription yields consistent book states; its Resets channel fires when a
// resync began and previously delivered states should be considered stale.
func (m *OrderbookMaintainer) Start() (*Subscription[*OrderBookSnapshot], error) {
	diffSub, err := m.streamAPI.DepthDiffStream(m.asset)
	if err != nil {
		return nil, err
	}
	m.diffSub = diffSub

	m.out = &Subscription[*OrderBookSnapshot]{
		Stream:      make(chan *OrderBookSnapshot, m.emitBufferSize),
		Resets:      make(chan struct{}, 1),
		Topic:       diffSub.Topic,
		Unsubscribe: m.Stop,
	}

	promclient.OpenDepthStreamsGauge.Inc()
	go m.run()

	return m.out, nil
}

func (m *OrderbookMaintainer) Stop() {
	m.closeOnce.Do(func() { close(m.done) })
}

// State reports the current phase of the reconciliation state machine.
func (m *OrderbookMaintainer) State() MaintainerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err holds the terminal error, if any, once the output stream is closed.
func (m *OrderbookMaintainer) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Book exposes the live book for on-demand snapshots (top-of-book queries etc).
// Nil until the first snapshot was applied.
func (m *OrderbookMaintainer) Book() *OrderBook {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book
}

func (m *OrderbookMaintainer) run() {
	defer func() {
		m.diffSub.Unsubscribe()
		close(m.out.Stream)
		promclient.OpenDepthStreamsGauge.Dec()
		m.setState(StateUnsynced)
	}()

	failures := 0
	for {
		m.setState(StateSnapshotting)

		snapshot, err := m.fetchSnapshotBuffering()
		if err == ErrStreamClosed {
			return
		}
		if err != nil {
			m.logger.WithError(err).Warn("snapshot fetch failed")
			failures++
			if failures > m.maxResyncAttempts {
				m.fail(ErrResyncBudgetExhausted)
				return
			}
			continue
		}

		m.mu.Lock()
		m.book = NewOrderBook(m.asset, snapshot)
		m.mu.Unlock()
		failures = 0

		m.setState(StateLive)
		m.emit()

		switch m.live() {
		case outcomeClosed:
			return
		case outcomeGap, outcomeReset:
			m.setState(StateResyncing)
			m.signalReset()
			promclient.DepthResyncsTotal.Inc()
			failures++
			if failures > m.maxResyncAttempts {
				m.fail(ErrResyncBudgetExhausted)
				return
			}
		}
	}
}

// fetchSnapshotBuffering requests a fresh snapshot while draining the diff
// stream into the local queue, so the transport is never blocked by a fetch in
// flight. Diffs older than the snapshot get discarded later by ApplyDiff.
func (m *OrderbookMaintainer) fetchSnapshotBuffering() (*OrderBookSnapshot, error) {
	type result struct {
		snapshot *OrderBookSnapshot
		err      error
	}
	resCh := make(chan result, 1)

	go func() {
		snapshot, err := m.syncAPI.OrderBookSnapshot(m.asset)
		resCh <- result{snapshot, err}
	}()

	for {
		select {
		case <-m.done:
			return nil, ErrStreamClosed
		case diff, ok := <-m.diffSub.Stream:
			if !ok {
				return nil, ErrStreamClosed
			}
			m.queue.PushBack(diff)
		case <-m.diffSub.Resets:
			// continuity already lost again; the queued diffs are unusable
			m.queue.Clear()
		case res := <-resCh:
			return res.snapshot, res.err
		}
	}
}

// live applies buffered and then freshly arriving diffs until the stream ends,
// continuity breaks or a sequence gap is found.
func (m *OrderbookMaintainer) live() liveOutcome {
	for m.queue.Len() > 0 {
		select {
		case <-m.done:
			return outcomeClosed
		default:
		}

		if gap := m.apply(m.queue.PopFront()); gap {
			m.queue.Clear()
			return outcomeGap
		}
	}

	for {
		select {
		case <-m.done:
			return outcomeClosed
		case <-m.diffSub.Resets:
			return outcomeReset
		case diff, ok := <-m.diffSub.Stream:
			if !ok {
				m.fail(ErrStreamClosed)
				return outcomeClosed
			}
			if gap := m.apply(diff); gap {
				return outcomeGap
			}
		}
	}
}

// apply runs one diff against the book. Reports true when a sequence gap was
// detected.
func (m *OrderbookMaintainer) apply(diff *OrderBookDiff) bool {
	switch err := m.book.ApplyDiff(diff); err {
	case nil:
		promclient.AppliedDiffsTotal.Inc()
		m.emit()
		return false
	case ErrOrderBookUpdateIsOutdated:
		// duplicate or pre-snapshot diff, drop silently
		return false
	case ErrOrderBookUpdateIsOutOfSequence:
		m.logger.WithFields(log.Fields{
			"book_seq": m.book.SequenceNumber,
			"diff_seq": diff.SequenceNumber,
		}).Warn("sequence gap detected, forcing resync")
		return true
	default:
		return false
	}
}

// emit publishes the current book state without ever blocking the reconciler:
// when the consumer lags, the oldest pending state is dropped in favour of the
// newer one.
func (m *OrderbookMaintainer) emit() {
	snapshot := m.book.TakeSnapshot(0)

	select {
	case m.out.Stream <- snapshot:
		return
	default:
	}

	select {
	case <-m.out.Stream:
	default:
	}
	select {
	case m.out.Stream <- snapshot:
	default:
	}
}

func (m *OrderbookMaintainer) signalReset() {
	select {
	case m.out.Resets <- struct{}{}:
	default:
	}
}

func (m *OrderbookMaintainer) setState(s MaintainerState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *OrderbookMaintainer) fail(err error) {
	m.mu.Lock()
	if m.err == nil {
		m.err = err
	}
	m.mu.Unlock()
	m.logger.WithError(err).Error("depth stream terminated")
}
