package imap_test

import (
	"testing"

	"github.com/sandmail/goimap"
)

// TestSeqSetRoundTrip checks that encoding a sequence set and parsing it back
// yields an equivalent set, per the sequence-set round-trip invariant.
func TestSeqSetRoundTrip(t *testing.T) {
	var want imap.SeqSet
	want.AddRange(3, 5)
	want.AddRange(7, 8)
	want.AddNum(10)

	const wantStr = "3:5,7:8,10"
	if s := want.String(); s != wantStr {
		t.Fatalf("SeqSet.String() = %q, want %q", s, wantStr)
	}

	got, err := imap.ParseSeqSet(wantStr)
	if err != nil {
		t.Fatalf("ParseSeqSet(%q) = %v", wantStr, err)
	}

	for _, n := range []uint32{3, 4, 5, 7, 8, 10} {
		if !got.Contains(n) {
			t.Errorf("parsed set does not contain %d", n)
		}
	}
	for _, n := range []uint32{1, 2, 6, 9, 11} {
		if got.Contains(n) {
			t.Errorf("parsed set unexpectedly contains %d", n)
		}
	}
	if s := got.String(); s != wantStr {
		t.Errorf("round-tripped SeqSet.String() = %q, want %q", s, wantStr)
	}
}
