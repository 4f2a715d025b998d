package room

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.TextMessage {
		cp := append([]byte(nil), data...)
		f.messages = append(f.messages, cp)
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.messages))
	copy(out, f.messages)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

const (
	alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestBroadcastToPlayersReachesAllMembers(t *testing.T) {
	r := New("match-1")
	aConn, bConn := &fakeConn{}, &fakeConn{}
	r.AddPlayer(NewClient(alice, aConn))
	r.AddPlayer(NewClient(bob, bConn))

	r.BroadcastToPlayers(map[string]string{"type": "GAME_STATE"})

	waitFor(t, func() bool { return len(aConn.received()) == 1 && len(bConn.received()) == 1 })

	var decoded map[string]string
	if err := json.Unmarshal(aConn.received()[0], &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "GAME_STATE" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestSendToPlayerIsDirect(t *testing.T) {
	r := New("match-1")
	aConn, bConn := &fakeConn{}, &fakeConn{}
	r.AddPlayer(NewClient(alice, aConn))
	r.AddPlayer(NewClient(bob, bConn))

	r.SendToPlayer(alice, map[string]string{"type": "STEP_RESULT"})

	waitFor(t, func() bool { return len(aConn.received()) == 1 })
	if len(bConn.received()) != 0 {
		t.Fatalf("expected bob to receive nothing, got %d messages", len(bConn.received()))
	}
}

func TestSpectatorsDoNotReceivePlayerBroadcast(t *testing.T) {
	r := New("match-1")
	aConn, specConn := &fakeConn{}, &fakeConn{}
	r.AddPlayer(NewClient(alice, aConn))
	r.AddSpectator(NewClient("spectator-1", specConn))

	r.BroadcastToPlayers(map[string]string{"type": "GAME_STATE"})

	waitFor(t, func() bool { return len(aConn.received()) == 1 })
	if len(specConn.received()) != 0 {
		t.Fatalf("expected spectator to receive nothing from a players-only broadcast")
	}
}

func TestRemovedPlayerStopsReceiving(t *testing.T) {
	r := New("match-1")
	aConn := &fakeConn{}
	r.AddPlayer(NewClient(alice, aConn))
	r.RemovePlayer(alice)

	r.BroadcastToPlayers(map[string]string{"type": "GAME_OVER"})
	time.Sleep(20 * time.Millisecond)
	if len(aConn.received()) != 0 {
		t.Fatalf("expected removed player to receive nothing")
	}
	if r.HasPlayer(alice) {
		t.Fatalf("expected HasPlayer to report false after removal")
	}
}

func TestCloseTearsDownAllMembers(t *testing.T) {
	r := New("match-1")
	aConn, specConn := &fakeConn{}, &fakeConn{}
	r.AddPlayer(NewClient(alice, aConn))
	r.AddSpectator(NewClient("spectator-1", specConn))

	r.Close()

	waitFor(t, func() bool { return aConn.closed && specConn.closed })
	if r.HasPlayer(alice) {
		t.Fatalf("expected room to be empty after Close")
	}
}
