package signaling

import (
	"testing"
)

func TestParseEnvelopeKeepsPayloadOpaque(t *testing.T) {
	raw := `{"type":"offer","userId":"a","targetUserId":"b","data":{"sdp":"v=0","nested":{"x":[1,2,3]}}}`

	env, err := ParseEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}

	if env.Type != KindOffer {
		t.Fatalf("type=%q, want %q", env.Type, KindOffer)
	}
	// The payload is carried through untouched, whatever its structure.
	if string(env.Data) != `{"sdp":"v=0","nested":{"x":[1,2,3]}}` {
		t.Fatalf("data=%s, want raw payload bytes", env.Data)
	}
}

func TestParseEnvelopeRejectsMalformedFrames(t *testing.T) {
	for _, frame := range []string{
		``,
		`{`,
		`"just a string"`,
		`{"type": 42}`,
	} {
		if _, err := ParseEnvelope([]byte(frame)); err == nil {
			t.Fatalf("ParseEnvelope accepted malformed frame %q", frame)
		}
	}
}
