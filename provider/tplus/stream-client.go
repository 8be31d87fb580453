package tplus

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/spooky-finn/go-exchange-client/config"
	"github.com/spooky-finn/go-exchange-client/domain"
	"github.com/spooky-finn/go-exchange-client/infrastructure/promclient"
)

// StreamClient multiplexes the service's websocket streams. Each topic gets
// its own connection, read loop and bounded buffer, so streams fail, reconnect
// and get consumed fully independently of each other.
//
// Two situations break continuity: a reconnect (whatever was missed while
// offline is unknowable) and a buffer overflow (the consumer lagged and the
// buffer was dropped rather than letting it grow or blocking the read loop).
// Both are reported on the subscription's Resets channel so the consumer can
// refetch a snapshot.
type StreamClient struct {
	wsBase *url.URL
	conf   *config.Config
	dialer *websocket.Dialer

	mu     sync.Mutex
	subs   map[uint64]chan struct{} // subscription id -> done
	nextID uint64
	closed bool
}

func NewStreamClient(conf *config.Config) (*StreamClient, error) {
	base, err := url.Parse(conf.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	switch base.Scheme {
	case "https", "wss":
		base.Scheme = "wss"
	default:
		base.Scheme = "ws"
	}

	return &StreamClient{
		wsBase: base,
		conf:   conf,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		subs:   make(map[uint64]chan struct{}),
	}, nil
}

// Subscribe opens a stream at the given topic path. Every call gets its own
// connection, even for the same topic, so two consumers of one subject stay
// fully independent. The returned sequence is infinite until Unsubscribe is
// called or the client is closed; transport drops are recovered internally
// with backoff.
func (c *StreamClient) Subscribe(topic string) (*domain.Subscription[[]byte], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ErrStreamClosed
	}

	logger.Infof("subscribing to %s", topic)

	id := c.nextID
	c.nextID++
	done := make(chan struct{})
	c.subs[id] = done

	ch := make(chan []byte, c.conf.StreamBufferSize)
	resets := make(chan struct{}, 1)

	promclient.OpenStreamsGauge.Inc()
	go c.readLoop(topic, ch, resets, done)

	return &domain.Subscription[[]byte]{
		Stream:      ch,
		Resets:      resets,
		Topic:       topic,
		Unsubscribe: func() { c.unsubscribe(id, topic) },
	}, nil
}

func (c *StreamClient) unsubscribe(id uint64, topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if done, ok := c.subs[id]; ok {
		logger.Infof("unsubscribing from %s", topic)
		close(done)
		delete(c.subs, id)
	}
}

// Close tears down every open subscription.
func (c *StreamClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, done := range c.subs {
		close(done)
		delete(c.subs, id)
	}
}

func (c *StreamClient) topicURL(topic string) string {
	u := *c.wsBase
	u.Path = topic
	return u.String()
}

func (c *StreamClient) readLoop(topic string, ch chan []byte, resets chan struct{}, done chan struct{}) {
	defer close(ch)
	defer promclient.OpenStreamsGauge.Dec()

	b := &backoff.Backoff{
		Min:    c.conf.ReconnectMinDelay,
		Max:    c.conf.ReconnectMaxDelay,
		Factor: c.conf.ReconnectFactor,
		Jitter: true,
	}

	first := true
	for {
		select {
		case <-done:
			return
		default:
		}

		conn, _, err := c.dialer.Dial(c.topicURL(topic), nil)
		if err != nil {
			logger.WithError(err).Warnf("dial %s failed, retrying", topic)
			promclient.StreamReconnectsTotal.Inc()
			if !c.sleep(b.Duration(), done) {
				return
			}
			continue
		}

		b.Reset()
		if !first {
			// sequence continuity cannot be assumed across a reconnect
			signalReset(resets)
			promclient.StreamReconnectsTotal.Inc()
			logger.Infof("reconnected to %s", topic)
		}
		first = false

		c.pump(conn, ch, resets, done)

		select {
		case <-done:
			return
		default:
		}

		if !c.sleep(b.Duration(), done) {
			return
		}
	}
}

// pump reads one connection until it drops or the subscription ends.
func (c *StreamClient) pump(conn *websocket.Conn, ch chan []byte, resets chan struct{}, done chan struct{}) {
	stop := make(chan struct{})
	defer close(stop)

	// unblocks ReadMessage when the subscription is closed
	go func() {
		select {
		case <-done:
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				logger.WithError(err).Warn("connection dropped")
			}
			return
		}

		select {
		case ch <- msg:
			continue
		default:
		}

		// Consumer fell behind. Drop the buffered backlog and force a
		// resync instead of blocking the transport or growing memory.
		drain(ch)
		signalReset(resets)
		promclient.DroppedStreamBuffersTotal.Inc()
		logger.Warn("stream buffer overflow, dropped backlog and forced resync")

		select {
		case ch <- msg:
		default:
		}
	}
}

func (c *StreamClient) sleep(d time.Duration, done chan struct{}) bool {
	select {
	case <-done:
		return false
	case <-time.After(d):
		return true
	}
}

func drain(ch chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func signalReset(resets chan struct{}) {
	select {
	case resets <- struct{}{}:
	default:
	}
}
