package hashkv

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []Entry{{Field: 1, Value: 100}, {Field: 2, Value: Tombstone}}
	blob := Encode(in)
	out := Decode(blob)
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestSetFieldAppendsAndOverwrites(t *testing.T) {
	blob := SetField(nil, 1, 10)
	blob = SetField(blob, 2, 20)
	blob = SetField(blob, 1, 11)
	v, ok := Get(blob, 1)
	if !ok || v != 11 {
		t.Fatalf("Get(1) = (%d,%v), want (11,true)", v, ok)
	}
	v, ok = Get(blob, 2)
	if !ok || v != 20 {
		t.Fatalf("Get(2) = (%d,%v), want (20,true)", v, ok)
	}
}

func TestDeleteFieldTombstonesWithoutShrinking(t *testing.T) {
	blob := SetField(nil, 1, 10)
	before := len(blob)
	blob = DeleteField(blob, 1)
	if len(blob) != before {
		t.Fatalf("tombstoning must not shrink the blob: len = %d, want %d", len(blob), before)
	}
	if _, ok := Get(blob, 1); ok {
		t.Fatalf("field 1 should read as absent after delete")
	}
}

func TestCountExcludesTombstones(t *testing.T) {
	blob := SetField(nil, 1, 10)
	blob = SetField(blob, 2, 20)
	blob = DeleteField(blob, 1)
	if got := Count(blob); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
}

func TestShouldDropBlob(t *testing.T) {
	if !ShouldDropBlob(nil) {
		t.Fatalf("empty blob should be dropped")
	}
	if !ShouldDropBlob([]byte{1, 2, 3}) {
		t.Fatalf("malformed-length blob should be dropped")
	}
	allTombstones := SetField(nil, 1, Tombstone)
	if !ShouldDropBlob(allTombstones) {
		t.Fatalf("all-tombstone blob should be dropped")
	}
	mixed := SetField(allTombstones, 2, 5)
	if ShouldDropBlob(mixed) {
		t.Fatalf("blob with a live field must not be dropped")
	}
}

func TestMergeNewestFirstOccurrenceWins(t *testing.T) {
	merger := newChessMerger()
	// newest operand first: field 1 = 100 (newest value)
	merger.absorbNewer(Encode([]Entry{{Field: 1, Value: 100}, {Field: 3, Value: Tombstone}}))
	// older operand: field 1 should NOT override, field 2 is new
	merger.absorbOlder(Encode([]Entry{{Field: 1, Value: 1}, {Field: 2, Value: 200}}))
	// oldest operand: field 3 already tombstoned by newer, must stay gone
	merger.absorbOlder(Encode([]Entry{{Field: 3, Value: 5}}))

	blob, _, err := merger.Finish(true)
	if err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	out := Decode(blob)
	got := map[int16]int16{}
	for _, e := range out {
		got[e.Field] = e.Value
	}
	if got[1] != 100 {
		t.Fatalf("field 1 = %d, want 100 (newest wins)", got[1])
	}
	if got[2] != 200 {
		t.Fatalf("field 2 = %d, want 200", got[2])
	}
	if _, present := got[3]; present {
		t.Fatalf("field 3 should be dropped as a tombstone on a full merge")
	}
}

func TestPartialMergeKeepsTombstones(t *testing.T) {
	merger := newChessMerger()
	merger.absorbNewer(Encode([]Entry{{Field: 3, Value: Tombstone}}))
	blob, _, err := merger.Finish(false)
	if err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	out := Decode(blob)
	if len(out) != 1 || !out[0].IsTombstone() {
		t.Fatalf("partial merge must keep the tombstone, got %v", out)
	}
}
