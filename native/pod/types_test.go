package pod

import "testing"

func TestDescriptiveFieldsDropPadding(t *testing.T) {
	var p Pod
	fixedBytes(p.PodName[:], "launch")
	fixedBytes(p.TokenName[:], "Meme Token")
	fixedBytes(p.TokenSymbol[:], "MEME")
	if p.PodNameString() != "launch" || p.TokenNameString() != "Meme Token" || p.TokenSymbolString() != "MEME" {
		t.Fatalf("unexpected names: %q %q %q", p.PodNameString(), p.TokenNameString(), p.TokenSymbolString())
	}

	var empty Pod
	if empty.PodNameString() != "" || empty.TokenSymbolString() != "" {
		t.Fatalf("zero record should render empty names")
	}
}
