package prefixsum

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestPrefixSumScalar(t *testing.T) {
	input := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	expected := []byte{0, 1, 3, 6, 10, 15, 21, 28, 36, 45, 55, 66, 78, 91, 105, 120, 136}

	prefixSumScalar(input)

	if !bytes.Equal(input, expected) {
		t.Fatalf("got %v, want %v", input, expected)
	}
}

func TestPrefixSumMatchesScalar(t *testing.T) {
	for _, n := range []int{0, 1, 7, 8, 10, 256, 1000, 1001, 2048, 2049, 100_000} {
		arr := make([]byte, n)
		for i := range arr {
			arr[i] = byte(i)
		}
		expected := append([]byte(nil), arr...)

		PrefixSum(arr)
		prefixSumScalar(expected)

		if !bytes.Equal(arr, expected) {
			t.Fatalf("n=%d: wide path disagrees with scalar", n)
		}
	}
}

func TestPrefixSumRandomMatchesScalar(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for iter := 0; iter < 50; iter++ {
		n := rnd.Intn(1 << 16)
		arr := make([]byte, n)
		rnd.Read(arr)
		expected := append([]byte(nil), arr...)

		PrefixSumBS(arr, 64)
		prefixSumScalar(expected)

		if !bytes.Equal(arr, expected) {
			t.Fatalf("iter=%d n=%d: mismatch", iter, n)
		}
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for _, n := range []int{0, 1, 3, 8, 9, 1023, 4096} {
		arr := make([]byte, n)
		rnd.Read(arr)
		orig := append([]byte(nil), arr...)

		Delta(arr)
		PrefixSum(arr)

		if !bytes.Equal(arr, orig) {
			t.Fatalf("n=%d: PrefixSum(Delta(a)) != a", n)
		}
	}
}

func TestDeltaMatchesNaive(t *testing.T) {
	arr := make([]byte, 100)
	for i := range arr {
		arr[i] = byte(i * 3)
	}
	expected := make([]byte, len(arr))
	prev := byte(0)
	for i, v := range arr {
		expected[i] = v - prev
		prev = v
	}

	Delta(arr)

	if !bytes.Equal(arr, expected) {
		t.Fatalf("got %v, want %v", arr, expected)
	}
}

func BenchmarkPrefixSum(b *testing.B) {
	arr := make([]byte, 4<<20)
	rand.New(rand.NewSource(1)).Read(arr)
	b.SetBytes(int64(len(arr)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PrefixSum(arr)
	}
}

func BenchmarkPrefixSumScalar(b *testing.B) {
	arr := make([]byte, 4<<20)
	rand.New(rand.NewSource(1)).Read(arr)
	b.SetBytes(int64(len(arr)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		prefixSumScalar(arr)
	}
}
