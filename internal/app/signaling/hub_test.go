package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
)

// newTestClient returns an attached client with no underlying
// connection; frames routed to it accumulate in its send queue.
func newTestClient(h *Hub) *Client {
	c := NewClient(h, nil)
	h.Attach(c)
	return c
}

// recvEnvelope pops the next queued frame for c and decodes it.
func recvEnvelope(t *testing.T, c *Client) (*Envelope, []byte) {
	t.Helper()

	select {
	case frame := <-c.send:
		env, err := ParseEnvelope(frame)
		if err != nil {
			t.Fatalf("queued frame is not a valid envelope: %v", err)
		}
		return env, frame
	default:
		t.Fatalf("expected a queued frame, got none")
		return nil, nil
	}
}

// expectNoFrame fails if c has anything queued.
func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()

	select {
	case frame := <-c.send:
		t.Fatalf("expected no queued frame, got %s", frame)
	default:
	}
}

// join performs the join handshake for c and returns the minted identity.
// Roster broadcasts received while not yet joined are discarded first;
// the joined reply and the join's own roster broadcast are consumed.
func join(t *testing.T, h *Hub, c *Client, username string) string {
	t.Helper()

	drain(c)
	h.Dispatch(c, []byte(fmt.Sprintf(`{"type":"join","username":%q}`, username)))

	joined, _ := recvEnvelope(t, c)
	if joined.Type != KindJoined {
		t.Fatalf("first reply type=%q, want %q", joined.Type, KindJoined)
	}
	if joined.UserID == "" {
		t.Fatalf("joined reply has empty userId")
	}
	if joined.Username != username {
		t.Fatalf("joined username=%q, want %q", joined.Username, username)
	}

	roster, _ := recvEnvelope(t, c)
	if roster.Type != KindUserList {
		t.Fatalf("second reply type=%q, want %q", roster.Type, KindUserList)
	}

	return joined.UserID
}

// drain discards everything queued for c.
func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestJoinAssignsUniqueIdentities(t *testing.T) {
	h := NewHub()

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		c := newTestClient(h)
		id := join(t, h, c, fmt.Sprintf("user-%d", i))
		if _, dup := seen[id]; dup {
			t.Fatalf("identity %q minted twice", id)
		}
		seen[id] = struct{}{}
		drain(c)
	}

	if got := len(h.Snapshot()); got != 20 {
		t.Fatalf("registry size=%d, want 20", got)
	}
}

func TestJoinWithoutUsernameRejected(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	for _, frame := range []string{
		`{"type":"join"}`,
		`{"type":"join","username":"   "}`,
	} {
		h.Dispatch(c, []byte(frame))

		env, _ := recvEnvelope(t, c)
		if env.Type != KindError {
			t.Fatalf("frame %s: reply type=%q, want %q", frame, env.Type, KindError)
		}
		expectNoFrame(t, c)
	}

	if got := len(h.Snapshot()); got != 0 {
		t.Fatalf("registry size=%d after rejected joins, want 0", got)
	}
}

func TestJoinTwiceOnSameConnectionRejected(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	join(t, h, c, "alice")
	h.Dispatch(c, []byte(`{"type":"join","username":"alice-again"}`))

	env, _ := recvEnvelope(t, c)
	if env.Type != KindError {
		t.Fatalf("reply type=%q, want %q", env.Type, KindError)
	}
	if got := len(h.Snapshot()); got != 1 {
		t.Fatalf("registry size=%d, want 1", got)
	}
}

func TestRosterBroadcastOnMembershipChange(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	b := newTestClient(h)

	idA := join(t, h, a, "alice")
	idB := join(t, h, b, "bob")

	// A must have received the roster broadcast triggered by B's join.
	env, _ := recvEnvelope(t, a)
	if env.Type != KindUserList {
		t.Fatalf("A reply type=%q, want %q", env.Type, KindUserList)
	}
	if len(env.Users) != 2 {
		t.Fatalf("roster size=%d, want 2", len(env.Users))
	}
	for _, u := range env.Users {
		if u.ID != idA && u.ID != idB {
			t.Fatalf("roster contains unknown id %q", u.ID)
		}
		if !u.IsOnline {
			t.Fatalf("roster entry %q not marked online", u.ID)
		}
	}

	h.Disconnect(b)

	env, _ = recvEnvelope(t, a)
	if env.Type != KindUserList {
		t.Fatalf("A reply type=%q after leave, want %q", env.Type, KindUserList)
	}
	if len(env.Users) != 1 || env.Users[0].ID != idA {
		t.Fatalf("roster after leave=%v, want only %q", env.Users, idA)
	}
}

func TestOfferRoutedToTargetOnly(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	b := newTestClient(h)
	c := newTestClient(h)

	idA := join(t, h, a, "alice")
	idB := join(t, h, b, "bob")
	join(t, h, c, "carol")
	drain(a)
	drain(b)
	drain(c)

	offer := []byte(fmt.Sprintf(`{"type":"offer","userId":%q,"targetUserId":%q,"data":{"sdp":"v=0"}}`, idA, idB))
	h.Dispatch(a, offer)

	_, frame := recvEnvelope(t, b)
	if !bytes.Equal(frame, offer) {
		t.Fatalf("forwarded frame=%s, want verbatim %s", frame, offer)
	}
	expectNoFrame(t, a)
	expectNoFrame(t, c)
}

func TestOfferToUnknownTargetDroppedSilently(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	b := newTestClient(h)

	idA := join(t, h, a, "alice")
	join(t, h, b, "bob")
	drain(a)
	drain(b)

	h.Dispatch(a, []byte(fmt.Sprintf(`{"type":"offer","userId":%q,"targetUserId":"no-such-id","data":{}}`, idA)))

	expectNoFrame(t, a)
	expectNoFrame(t, b)
}

func TestOfferWithoutTargetRejected(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)

	idA := join(t, h, a, "alice")
	drain(a)

	h.Dispatch(a, []byte(fmt.Sprintf(`{"type":"offer","userId":%q}`, idA)))

	env, _ := recvEnvelope(t, a)
	if env.Type != KindError {
		t.Fatalf("reply type=%q, want %q", env.Type, KindError)
	}
}

func TestTypingRelayedToAllButSender(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	b := newTestClient(h)
	c := newTestClient(h)

	idA := join(t, h, a, "alice")
	join(t, h, b, "bob")
	join(t, h, c, "carol")
	drain(a)
	drain(b)
	drain(c)

	typing := []byte(fmt.Sprintf(`{"type":"typing","userId":%q}`, idA))
	h.Dispatch(a, typing)

	for _, peer := range []*Client{b, c} {
		_, frame := recvEnvelope(t, peer)
		if !bytes.Equal(frame, typing) {
			t.Fatalf("relayed frame=%s, want verbatim %s", frame, typing)
		}
	}
	expectNoFrame(t, a)
}

func TestMessageFanOutIncludesSender(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	b := newTestClient(h)

	idA := join(t, h, a, "alice")
	join(t, h, b, "bob")
	drain(a)
	drain(b)

	h.Dispatch(a, []byte(fmt.Sprintf(`{"type":"message","userId":%q,"username":"alice","data":{"content":"hi"}}`, idA)))

	var stamps []int64
	for _, peer := range []*Client{a, b} {
		env, _ := recvEnvelope(t, peer)
		if env.Type != KindMessage {
			t.Fatalf("reply type=%q, want %q", env.Type, KindMessage)
		}
		if env.Timestamp <= 0 {
			t.Fatalf("message timestamp=%d, want > 0", env.Timestamp)
		}
		if string(env.Data) != `{"content":"hi"}` {
			t.Fatalf("message data=%s, want original payload", env.Data)
		}
		stamps = append(stamps, env.Timestamp)
	}
	if stamps[0] != stamps[1] {
		t.Fatalf("sender and peer saw different timestamps: %d vs %d", stamps[0], stamps[1])
	}
}

func TestMessageTimestampsMonotonic(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)

	idA := join(t, h, a, "alice")
	drain(a)

	var last int64
	for i := 0; i < 50; i++ {
		h.Dispatch(a, []byte(fmt.Sprintf(`{"type":"message","userId":%q,"username":"alice","data":{"n":%d}}`, idA, i)))

		env, _ := recvEnvelope(t, a)
		if env.Timestamp < last {
			t.Fatalf("timestamp went backwards: %d after %d", env.Timestamp, last)
		}
		last = env.Timestamp
	}
}

func TestMessageBeforeJoinRejected(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	h.Dispatch(c, []byte(`{"type":"message","userId":"ghost","username":"ghost","data":{}}`))

	env, _ := recvEnvelope(t, c)
	if env.Type != KindError {
		t.Fatalf("reply type=%q, want %q", env.Type, KindError)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	b := newTestClient(h)

	join(t, h, a, "alice")
	join(t, h, b, "bob")
	drain(a)
	drain(b)

	h.Disconnect(b)
	h.Disconnect(b)

	// Exactly one roster broadcast despite the double disconnect.
	env, _ := recvEnvelope(t, a)
	if env.Type != KindUserList || len(env.Users) != 1 {
		t.Fatalf("first broadcast=%v, want single-entry user-list", env)
	}
	expectNoFrame(t, a)
}

func TestDisconnectBeforeJoinIsNoOp(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	stranger := newTestClient(h)

	join(t, h, a, "alice")
	drain(a)

	h.Disconnect(stranger)

	expectNoFrame(t, a)
	if got := len(h.Snapshot()); got != 1 {
		t.Fatalf("registry size=%d, want 1", got)
	}
}

func TestSendToClosedConnectionIsSafe(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	b := newTestClient(h)

	idA := join(t, h, a, "alice")
	idB := join(t, h, b, "bob")
	drain(a)
	drain(b)

	// B's transport died but the hub has not processed the disconnect yet.
	b.closeSendQueue()

	h.Dispatch(a, []byte(fmt.Sprintf(`{"type":"offer","userId":%q,"targetUserId":%q,"data":{}}`, idA, idB)))
	expectNoFrame(t, a)

	h.Dispatch(a, []byte(fmt.Sprintf(`{"type":"message","userId":%q,"username":"alice","data":{"content":"still here"}}`, idA)))

	env, _ := recvEnvelope(t, a)
	if env.Type != KindMessage {
		t.Fatalf("reply type=%q, want %q", env.Type, KindMessage)
	}
}

func TestUnknownKindAnsweredWithError(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	h.Dispatch(c, []byte(`{"type":"teleport"}`))

	env, _ := recvEnvelope(t, c)
	if env.Type != KindError {
		t.Fatalf("reply type=%q, want %q", env.Type, KindError)
	}
	if env.Error == "" {
		t.Fatalf("error envelope has empty error field")
	}
}

func TestMalformedFrameAnsweredWithError(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	h.Dispatch(c, []byte(`{"type":`))

	env, _ := recvEnvelope(t, c)
	if env.Type != KindError {
		t.Fatalf("reply type=%q, want %q", env.Type, KindError)
	}

	// The connection stays usable: a join afterwards succeeds.
	join(t, h, c, "late-but-fine")
}

func TestLeaveIsReservedNoOp(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	b := newTestClient(h)

	join(t, h, a, "alice")
	join(t, h, b, "bob")
	drain(a)
	drain(b)

	h.Dispatch(a, []byte(`{"type":"leave"}`))

	expectNoFrame(t, a)
	expectNoFrame(t, b)
	if got := len(h.Snapshot()); got != 2 {
		t.Fatalf("registry size=%d after leave frame, want 2", got)
	}
}

func TestRosterSentToUnjoinedConnections(t *testing.T) {
	h := NewHub()
	watcher := newTestClient(h)
	a := newTestClient(h)

	join(t, h, a, "alice")

	// A connection that never joined still observes membership changes.
	env, _ := recvEnvelope(t, watcher)
	if env.Type != KindUserList {
		t.Fatalf("watcher received type=%q, want %q", env.Type, KindUserList)
	}
	if len(env.Users) != 1 {
		t.Fatalf("roster size=%d, want 1", len(env.Users))
	}
}

func TestRosterSerializedOnce(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	b := newTestClient(h)

	join(t, h, a, "alice")
	join(t, h, b, "bob")
	drain(a)

	// Both clients must receive byte-identical roster payloads.
	c := newTestClient(h)
	join(t, h, c, "carol")

	_, frameA := recvEnvelope(t, a)
	_, frameB := recvEnvelope(t, b)
	if !bytes.Equal(frameA, frameB) {
		t.Fatalf("roster payloads differ:\n%s\n%s", frameA, frameB)
	}

	var env Envelope
	if err := json.Unmarshal(frameA, &env); err != nil {
		t.Fatalf("roster payload not valid JSON: %v", err)
	}
	if len(env.Users) != 3 {
		t.Fatalf("roster size=%d, want 3", len(env.Users))
	}
}
