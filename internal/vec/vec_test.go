package vec

import (
	"math"
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	v := []float32{0.5, -1.25, 3.75, 0}

	decoded, err := Decode(Encode(v))
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}

	if !reflect.DeepEqual(v, decoded) {
		t.Errorf("round trip changed vector: %v vs %v", v, decoded)
	}
}

func TestEncodeLittleEndian(t *testing.T) {
	t.Parallel()

	b := Encode([]float32{1})
	// 1.0 as IEEE-754 float32 little-endian.
	expected := []byte{0x00, 0x00, 0x80, 0x3f}

	if !reflect.DeepEqual(b, expected) {
		t.Errorf("expected %x, got %x", expected, b)
	}
}

func TestDecodeRejectsBadLength(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for non-multiple-of-4 blob")
	}
}

func TestCosineDistance(t *testing.T) {
	t.Parallel()

	if d := CosineDistance([]float32{1, 0}, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("identical vectors should have distance 0, got %f", d)
	}

	if d := CosineDistance([]float32{1, 0}, []float32{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal vectors should have distance 1, got %f", d)
	}

	if d := CosineDistance([]float32{1, 0}, []float32{-1, 0}); math.Abs(d-2) > 1e-9 {
		t.Errorf("opposite vectors should have distance 2, got %f", d)
	}

	if d := CosineDistance([]float32{1, 0}, []float32{0, 0}); d != 1 {
		t.Errorf("zero vector should yield maximum distance, got %f", d)
	}

	if d := CosineDistance([]float32{1}, []float32{1, 0}); d != 1 {
		t.Errorf("mismatched lengths should yield maximum distance, got %f", d)
	}
}
