package server

import (
	"testing"
)

// TestSessionLifecycle verifies a session whose peer is already gone moves
// straight from OPEN to CLOSED and leaves the registry.
func TestSessionLifecycle(t *testing.T) {
	m := newTestManager()
	leaving := newOfflineConnection(1, 8)
	staying := newOfflineConnection(2, 8)
	m.Connect(leaving)
	m.Connect(staying)

	session := NewSession(m, leaving)
	if session.State() != StateConnecting {
		t.Fatalf("Expected new session to be %s, got %s", StateConnecting, session.State())
	}

	if err := session.Run(); err != nil {
		t.Fatalf("Expected a clean disconnect, got %v", err)
	}

	if session.State() != StateClosed {
		t.Errorf("Expected session to be %s after Run, got %s", StateClosed, session.State())
	}
	if m.Count() != 1 || m.Connections()[0] != staying {
		t.Errorf("Expected only client 2 to remain, got %d connections", m.Count())
	}

	select {
	case <-leaving.Done():
	default:
		t.Error("Expected the leaving connection to be closed")
	}
}

// TestSessionAnnouncesDeparture verifies the remaining clients are told who left
// and the departed client is not.
func TestSessionAnnouncesDeparture(t *testing.T) {
	m := newTestManager()
	leaving := newOfflineConnection(7, 8)
	staying := newOfflineConnection(8, 8)
	m.Connect(leaving)
	m.Connect(staying)

	_ = NewSession(m, leaving).Run()

	if got := drain(staying); len(got) != 1 || got[0] != "Client #7 left the chat" {
		t.Errorf("Expected departure notice, got %v", got)
	}
	if got := drain(leaving); len(got) != 0 {
		t.Errorf("Departed client should not receive the notice, got %v", got)
	}
}

// TestSessionCloseAnnouncesOnce verifies an already deregistered connection
// produces no departure notice.
func TestSessionCloseAnnouncesOnce(t *testing.T) {
	m := newTestManager()
	leaving := newOfflineConnection(3, 8)
	staying := newOfflineConnection(4, 8)
	m.Connect(leaving)
	m.Connect(staying)
	m.Disconnect(leaving)

	session := NewSession(m, leaving)
	_ = session.Run()
	_ = session.Run()

	if got := drain(staying); len(got) != 0 {
		t.Errorf("Expected no departure notice for an unregistered client, got %v", got)
	}
}

// TestHandleMessageOrdering verifies the author gets the acknowledgement
// before the broadcast copy, and other clients only the broadcast.
func TestHandleMessageOrdering(t *testing.T) {
	m := newTestManager()
	author := newOfflineConnection(1, 8)
	peer := newOfflineConnection(2, 8)
	m.Connect(author)
	m.Connect(peer)

	session := NewSession(m, author)
	session.handleMessage("hi")

	got := drain(author)
	if len(got) != 2 || got[0] != "You wrote: hi" || got[1] != "Client #1 says: hi" {
		t.Errorf("Author expected acknowledgement then broadcast, got %v", got)
	}
	if got := drain(peer); len(got) != 1 || got[0] != "Client #1 says: hi" {
		t.Errorf("Peer expected the broadcast only, got %v", got)
	}
}

// TestMessageFormats pins the wire text of every chat notice.
func TestMessageFormats(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ack", YouWrote("hello"), "You wrote: hello"},
		{"ack empty", YouWrote(""), "You wrote: "},
		{"says", ClientSays(42, "hello"), "Client #42 says: hello"},
		{"says negative id", ClientSays(-5, "x"), "Client #-5 says: x"},
		{"left", ClientLeft(42), "Client #42 left the chat"},
		{"left zero", ClientLeft(0), "Client #0 left the chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}

// TestSessionStateString verifies the state names used in logs.
func TestSessionStateString(t *testing.T) {
	tests := map[SessionState]string{
		StateConnecting:  "CONNECTING",
		StateOpen:        "OPEN",
		StateClosed:      "CLOSED",
		SessionState(99): "UNKNOWN",
	}

	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}
