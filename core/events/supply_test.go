package events

import (
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestTokenSupplyEvent(t *testing.T) {
	mint := solana.SolMint
	evt := TokenSupply{
		Mint:   mint,
		Total:  5000,
		Delta:  250,
		Reason: SupplyReasonBurn,
	}.Event()
	if evt == nil {
		t.Fatalf("expected event")
	}
	if evt.Type != TypeTokenSupply {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["mint"] != mint.String() {
		t.Fatalf("unexpected mint attr: %s", evt.Attributes["mint"])
	}
	if evt.Attributes["total"] != "5000" || evt.Attributes["delta"] != "250" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["reason"] != SupplyReasonBurn {
		t.Fatalf("unexpected reason: %s", evt.Attributes["reason"])
	}
	if _, ok := evt.Attributes["account"]; ok {
		t.Fatalf("zero account should be omitted")
	}
}

func TestBufferKeepsEmissionOrder(t *testing.T) {
	buf := &Buffer{}
	buf.Emit(Transfer{Amount: 1})
	buf.Emit(nil)
	buf.Emit(TokenSupply{Delta: 2})

	got := buf.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventType() != TypeTransfer || got[1].EventType() != TypeTokenSupply {
		t.Fatalf("unexpected order: %s, %s", got[0].EventType(), got[1].EventType())
	}
	rendered := Render(got[0])
	if rendered.Attributes["amount"] != "1" {
		t.Fatalf("unexpected rendered amount: %s", rendered.Attributes["amount"])
	}
}
