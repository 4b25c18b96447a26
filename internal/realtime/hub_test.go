package realtime

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angeldelgado/deliverydash-backend/pkg/config"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
)

type fakeConn struct {
	mu       sync.Mutex
	written  []any
	pings    int
	closed   bool
	writeErr error
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func newTestHub() *Hub {
	return NewHub(config.RealtimeConfig{PingInterval: time.Minute, WriteTimeout: time.Second},
		logger.New(logger.Options{ServiceName: "realtime-test", Output: io.Discard}))
}

func TestPushReachesAllDriverSessions(t *testing.T) {
	hub := newTestHub()
	driverID := uuid.New()

	phone := &fakeConn{}
	tablet := &fakeConn{}
	hub.Attach(driverID, phone)
	hub.Attach(driverID, tablet)

	other := &fakeConn{}
	hub.Attach(uuid.New(), other)

	hub.Push(driverID, map[string]string{"type": "new_order"})

	if len(phone.written) != 1 || len(tablet.written) != 1 {
		t.Fatalf("both driver sessions should receive the event, got %d and %d", len(phone.written), len(tablet.written))
	}
	if len(other.written) != 0 {
		t.Fatalf("other drivers must not receive the event")
	}
}

func TestPushDropsDeadSessions(t *testing.T) {
	hub := newTestHub()
	driverID := uuid.New()

	dead := &fakeConn{writeErr: io.ErrClosedPipe}
	hub.Attach(driverID, dead)

	hub.Push(driverID, map[string]string{"type": "new_order"})

	if !dead.closed {
		t.Fatalf("failed session should be closed")
	}
	if hub.Connected(driverID) {
		t.Fatalf("driver should have no live sessions left")
	}
}

func TestDetachRemovesSession(t *testing.T) {
	hub := newTestHub()
	driverID := uuid.New()

	conn := &fakeConn{}
	session := hub.Attach(driverID, conn)
	if !hub.Connected(driverID) {
		t.Fatalf("driver should be connected after attach")
	}

	hub.Detach(session)
	if hub.Connected(driverID) {
		t.Fatalf("driver should be disconnected after detach")
	}
	if !conn.closed {
		t.Fatalf("detach should close the connection")
	}
}

func TestSweepPingsLiveAndDropsStale(t *testing.T) {
	hub := newTestHub()

	live := &fakeConn{}
	hub.Attach(uuid.New(), live)

	staleConn := &fakeConn{}
	staleSession := hub.Attach(uuid.New(), staleConn)
	staleSession.mu.Lock()
	staleSession.lastSeen = time.Now().Add(-time.Hour)
	staleSession.mu.Unlock()

	hub.sweep()

	if live.pings != 1 {
		t.Fatalf("live session should be pinged, got %d", live.pings)
	}
	if !staleConn.closed {
		t.Fatalf("stale session should be dropped")
	}
}

func TestBroadcastReachesEveryone(t *testing.T) {
	hub := newTestHub()

	a := &fakeConn{}
	b := &fakeConn{}
	hub.Attach(uuid.New(), a)
	hub.Attach(uuid.New(), b)

	hub.Broadcast(map[string]string{"type": "order_status"})

	if len(a.written) != 1 || len(b.written) != 1 {
		t.Fatalf("broadcast should reach every session")
	}
}
