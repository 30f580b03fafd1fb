package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()

	msg, err := NewMessage(TypeHello, Hello{Name: "martin", Game: "pilot"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if decoded.Type != TypeHello {
		t.Fatalf("type = %s, want %s", decoded.Type, TypeHello)
	}

	var hello Hello
	if err := decoded.Decode(&hello); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if hello.Name != "martin" || hello.Game != "pilot" {
		t.Fatalf("payload mismatch: %+v", hello)
	}
}

func TestDecisionRequestRoundTrip(t *testing.T) {
	t.Parallel()

	req := DecisionRequest{
		RequestID:  "req-7",
		Kind:       KindVote,
		DeadlineMS: 10000,
		Candidates: []string{"alba", "bram"},
		View: View{
			GameID: "g1",
			Day:    3,
			Phase:  "vote",
			Pot:    1200,
			You:    PlayerInfo{ID: "cleo", Name: "Cleo", Alive: true},
			Role:   "innocent",
			Players: []PlayerInfo{
				{ID: "alba", Name: "Alba", Alive: true},
				{ID: "bram", Name: "Bram", Alive: true, Protection: true},
			},
			Suspicion: map[string]float64{"alba": 0.7, "bram": 0.3},
		},
	}

	msg, err := NewMessage(TypeDecisionRequest, req)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	var got DecisionRequest
	if err := msg.Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RequestID != req.RequestID || got.Kind != KindVote {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if len(got.Candidates) != 2 || got.Candidates[1] != "bram" {
		t.Fatalf("candidates mismatch: %v", got.Candidates)
	}
	if got.View.Suspicion["alba"] != 0.7 {
		t.Fatalf("suspicion mismatch: %v", got.View.Suspicion)
	}
	if !got.View.Players[1].Protection {
		t.Fatal("protection flag lost in transit")
	}
}

func TestDecisionResponseOmitsUnsetFields(t *testing.T) {
	t.Parallel()

	// A vote answer should not leak empty recruitment or reflect fields
	// onto the wire.
	raw, err := json.Marshal(DecisionResponse{RequestID: "req-1", Target: "alba"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(raw)
	for _, field := range []string{"accept", "choice", "shifts"} {
		if strings.Contains(s, field) {
			t.Errorf("serialized response leaks %q: %s", field, s)
		}
	}
}

func TestGameEndCarriesSplit(t *testing.T) {
	t.Parallel()

	end := GameEnd{
		GameID:   "g1",
		Winner:   "innocent",
		Reason:   "adversaries_eliminated",
		Days:     5,
		Pot:      4200,
		PotSplit: map[string]int{"alba": 2100, "cleo": 2100},
		YourRole: "innocent",
		YouWon:   true,
	}

	msg, err := NewMessage(TypeGameEnd, end)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	var got GameEnd
	if err := msg.Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PotSplit["alba"] != 2100 || !got.YouWon {
		t.Fatalf("round trip lost data: %+v", got)
	}
}
