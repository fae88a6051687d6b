package arcslice

import (
	"bytes"
	"testing"
)

func mk(n int) Slice {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return New(b)
}

func TestIndexAndSplit(t *testing.T) {
	s := mk(10)

	sub := s.Index(2, 6)
	if sub.Len() != 4 || sub.Bytes()[0] != 2 {
		t.Fatalf("unexpected sub-view: len=%d", sub.Len())
	}

	a, b := s.SplitAt(4)
	if a.Len() != 4 || b.Len() != 6 || b.Bytes()[0] != 4 {
		t.Fatalf("unexpected split: %d/%d", a.Len(), b.Len())
	}
}

func TestIndexOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	mk(4).Index(0, 5)
}

func TestChunksConcatEqualsOriginal(t *testing.T) {
	for _, tc := range []struct{ n, size int }{
		{0, 1}, {1, 1}, {10, 3}, {10, 10}, {10, 11}, {1000, 7}, {4096, 32},
	} {
		s := mk(tc.n)
		var (
			got   []byte
			count int
		)
		for it := s.Chunks(tc.size); ; {
			chunk, ok := it.Next()
			if !ok {
				break
			}
			if chunk.Len() > tc.size {
				t.Fatalf("n=%d size=%d: oversized chunk %d", tc.n, tc.size, chunk.Len())
			}
			got = append(got, chunk.Bytes()...)
			count++
		}
		if !bytes.Equal(got, s.Bytes()) {
			t.Fatalf("n=%d size=%d: concatenation differs", tc.n, tc.size)
		}
		if want := NChunks(tc.n, tc.size); count != want {
			t.Fatalf("n=%d size=%d: %d chunks, want %d", tc.n, tc.size, count, want)
		}
	}
}

func TestChunksExact(t *testing.T) {
	s := mk(10)
	it, rem := s.ChunksExact(4)

	var sizes []int
	for {
		chunk, ok := it.Next()
		if !ok {
			break
		}
		sizes = append(sizes, chunk.Len())
	}
	if len(sizes) != 2 || sizes[0] != 4 || sizes[1] != 4 {
		t.Fatalf("unexpected chunk sizes %v", sizes)
	}
	if rem.Len() != 2 || rem.Bytes()[0] != 8 {
		t.Fatalf("unexpected remainder len=%d", rem.Len())
	}
}

func TestEqualByContent(t *testing.T) {
	a := New([]byte{1, 2, 3})
	b := New(append([]byte(nil), 1, 2, 3))
	if !a.Equal(b) || a.Compare(b) != 0 {
		t.Fatal("content-equal slices reported unequal")
	}
	if a.Equal(a.Index(0, 2)) {
		t.Fatal("prefix reported equal to whole")
	}
}

func TestSubViewSharesStorage(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	s := New(b)
	sub := s.Index(1, 3)
	if &sub.Bytes()[0] != &b[1] {
		t.Fatal("Index copied the storage")
	}
}
