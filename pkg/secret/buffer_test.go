package secret

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// [Unit] Buffer Allocation
// =============================================================================

func TestU_Buffer_New(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"[Unit] New: 32 bytes", 32, false},
		{"[Unit] New: page sized", 4096, false},
		{"[Unit] New: zero size", 0, true},
		{"[Unit] New: negative size", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer, err := New(tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer buffer.Close()

			if buffer.Len() != tt.size {
				t.Errorf("Len() = %d, want %d", buffer.Len(), tt.size)
			}
			for index, value := range buffer.Bytes() {
				if value != 0 {
					t.Fatalf("expected zero at index %d, got %d", index, value)
				}
			}
		})
	}
}

func TestU_Buffer_NewFromBytes_ZerosSource(t *testing.T) {
	source := []byte("correct-horse-battery-staple")
	original := string(source)

	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes() error = %v", err)
	}
	defer buffer.Close()

	if string(buffer.Bytes()) != original {
		t.Errorf("buffer content = %q, want %q", buffer.Bytes(), original)
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d was not zeroed: got %d", index, value)
		}
	}
}

func TestU_Buffer_NewFromBytes_Empty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestU_Buffer_NewFromReader(t *testing.T) {
	buffer, err := NewFromReader(bytes.NewReader([]byte("0123456789")), 4)
	if err != nil {
		t.Fatalf("NewFromReader() error = %v", err)
	}
	defer buffer.Close()

	if string(buffer.Bytes()) != "0123" {
		t.Errorf("content = %q, want %q", buffer.Bytes(), "0123")
	}
}

func TestU_Buffer_NewFromReader_Short(t *testing.T) {
	_, err := NewFromReader(strings.NewReader("ab"), 16)
	if err == nil {
		t.Fatal("expected error for short read")
	}
}

// =============================================================================
// [Unit] Buffer Access
// =============================================================================

func TestU_Buffer_Expose(t *testing.T) {
	buffer, err := NewFromBytes([]byte("seed"))
	if err != nil {
		t.Fatalf("NewFromBytes() error = %v", err)
	}

	var seen string
	if err := buffer.Expose(func(b []byte) error {
		seen = string(b)
		return nil
	}); err != nil {
		t.Fatalf("Expose() error = %v", err)
	}
	if seen != "seed" {
		t.Errorf("Expose saw %q, want %q", seen, "seed")
	}

	sentinel := errors.New("boom")
	if err := buffer.Expose(func([]byte) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("Expose() error = %v, want %v", err, sentinel)
	}

	_ = buffer.Close()
	if err := buffer.Expose(func([]byte) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Expose() after Close error = %v, want ErrClosed", err)
	}
}

func TestU_Buffer_Equal(t *testing.T) {
	buffer, err := NewFromBytes([]byte("abc"))
	if err != nil {
		t.Fatalf("NewFromBytes() error = %v", err)
	}
	defer buffer.Close()

	if !buffer.Equal([]byte("abc")) {
		t.Error("Equal(abc) = false, want true")
	}
	if buffer.Equal([]byte("abd")) {
		t.Error("Equal(abd) = true, want false")
	}
	if buffer.Equal([]byte("ab")) {
		t.Error("Equal(ab) = true, want false")
	}
}

func TestU_Buffer_Clone(t *testing.T) {
	buffer, err := NewFromBytes([]byte("original"))
	if err != nil {
		t.Fatalf("NewFromBytes() error = %v", err)
	}
	defer buffer.Close()

	clone, err := buffer.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	defer clone.Close()

	clone.Bytes()[0] = 'X'
	if string(buffer.Bytes()) != "original" {
		t.Errorf("mutating clone changed original: %q", buffer.Bytes())
	}
}

func TestU_Buffer_WriteTo(t *testing.T) {
	buffer, err := NewFromBytes([]byte("payload"))
	if err != nil {
		t.Fatalf("NewFromBytes() error = %v", err)
	}
	defer buffer.Close()

	var out bytes.Buffer
	n, err := buffer.WriteTo(&out)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if n != 7 || out.String() != "payload" {
		t.Errorf("WriteTo() = %d, %q", n, out.String())
	}
}

// =============================================================================
// [Unit] Buffer Close
// =============================================================================

func TestU_Buffer_Close(t *testing.T) {
	buffer, err := New(32)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	copy(buffer.Bytes(), "this should be zeroed")

	if err := buffer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buffer.data != nil {
		t.Error("expected data to be nil after Close")
	}
	if err := buffer.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestU_Buffer_Close_Nil(t *testing.T) {
	var buffer *Buffer
	if err := buffer.Close(); err != nil {
		t.Errorf("Close() on nil buffer error = %v", err)
	}
}

func TestU_Buffer_BytesAfterClose_Panics(t *testing.T) {
	buffer, err := New(8)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_ = buffer.Close()

	defer func() {
		if recover() == nil {
			t.Error("expected panic reading closed buffer")
		}
	}()
	_ = buffer.Bytes()
}

func TestU_Zero(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	Zero(data)
	if !bytes.Equal(data, []byte{0, 0, 0, 0}) {
		t.Errorf("Zero() left %v", data)
	}
}
