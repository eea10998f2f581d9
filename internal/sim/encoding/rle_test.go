package encoding

import "testing"

func TestRLE_RoundTrip(t *testing.T) {
	// A typical grid row: open street cells, a run of building, more street.
	in := make([]uint16, 0, 200)
	for i := 0; i < 12; i++ {
		in = append(in, 0)
	}
	for i := 0; i < 50; i++ {
		in = append(in, 1)
	}
	in = append(in, 0, 0, 1, 0, 1, 1, 1, 0)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_Empty(t *testing.T) {
	out, err := DecodeRLE(EncodeRLE(nil))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty, got %d cells", len(out))
	}
}
