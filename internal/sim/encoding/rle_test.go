package encoding

import "testing"

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint8, 0, 200)
	in = append(in, 1, 1, 1, 255, 255, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 0)
	}
	in = append(in, 9, 10, 10, 10)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc, len(in))
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

func TestRLE_Limit(t *testing.T) {
	enc := EncodeRLE(make([]uint8, 2500))
	if _, err := DecodeRLE(enc, 2499); err == nil {
		t.Fatalf("expected limit error")
	}
	if _, err := DecodeRLE("!!", 10); err == nil {
		t.Fatalf("expected base64 error")
	}
}
