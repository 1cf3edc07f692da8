package iowrap

import (
	"bytes"
	"testing"

	"github.com/TilBlechschmidt/restic-dl/internal/progress"
	"github.com/zeebo/blake3"
)

func TestHashWriterFinalizeMatchesBlake3(t *testing.T) {
	var buf bytes.Buffer
	hw := NewHashWriter(&buf)

	data := []byte("myhost\n")
	if _, err := hw.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, _ := hw.Finalize()
	want := blake3.Sum256(data)
	if got != want {
		t.Fatalf("hash mismatch: got %x want %x", got, want)
	}
	if buf.String() != string(data) {
		t.Fatalf("inner writer did not receive the bytes")
	}
}

func TestHashWriterEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	hw := NewHashWriter(&buf)
	got, _ := hw.Finalize()
	want := blake3.Sum256(nil)
	if got != want {
		t.Fatalf("empty hash mismatch: got %x want %x", got, want)
	}
}

func TestProgressWriterReportsExactByteCount(t *testing.T) {
	var buf bytes.Buffer
	tr := progress.NewTracker()
	pw := NewProgressWriter(&buf, tr)

	total := 0
	chunk := bytes.Repeat([]byte{0x42}, 200*1024)
	for i := 0; i < 5; i++ {
		n, err := pw.Write(chunk)
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		total += n
	}
	if err := pw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := tr.Handle().Current().Data.Current
	if int(got) != total {
		t.Fatalf("reported %d bytes, wrote %d", got, total)
	}
}

func TestProgressWriterCloseIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	tr := progress.NewTracker()
	pw := NewProgressWriter(&buf, tr)
	pw.Write([]byte("abc"))

	if err := pw.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := pw.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if got := tr.Handle().Current().Data.Current; got != 3 {
		t.Fatalf("expected 3 bytes reported once, got %d", got)
	}
}
