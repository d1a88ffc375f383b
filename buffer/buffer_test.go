package buffer

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/freekieb7/kiln/test"
)

func TestWriteReadRoundTrip(t *testing.T) {
	testCases := [][]byte{
		[]byte("a"),
		[]byte("hello, world"),
		bytes.Repeat([]byte{0xff}, 16),
		[]byte{},
	}

	for _, tc := range testCases {
		b := New(16)

		n, err := b.Write(tc)
		test.NoError(t, err)
		test.Equal(t, len(tc), n)

		out := make([]byte, len(tc))
		n, _ = b.Read(out)
		test.Equal(t, len(tc), n)
		test.True(t, bytes.Equal(tc, out), "read data differs from written data")
		test.Equal(t, 0, b.Len())
	}
}

func TestWriteFull(t *testing.T) {
	b := New(4)

	n, err := b.Write([]byte("abcdef"))
	test.Equal(t, 4, n)
	test.ErrorIs(t, err, ErrFull)

	n, err = b.Write([]byte("x"))
	test.Equal(t, 0, n)
	test.ErrorIs(t, err, ErrFull)

	test.ErrorIs(t, b.WriteByte('x'), ErrFull)
}

func TestWriteDefragmentsAfterRead(t *testing.T) {
	b := New(8)

	b.Write([]byte("abcdefgh"))
	out := make([]byte, 6)
	b.Read(out)

	// Only 2 bytes sit at the tail of the array; a 6 byte write must still fit.
	n, err := b.Write([]byte("123456"))
	test.NoError(t, err)
	test.Equal(t, 6, n)
	test.Equal(t, "gh123456", string(b.Bytes()))
}

func TestSpaceAndLengthNeverExceedCapacity(t *testing.T) {
	b := New(10)
	scratch := make([]byte, 3)

	ops := []func(){
		func() { b.Write([]byte("abcd")) },
		func() { b.Read(scratch) },
		func() { b.Write([]byte("efghijkl")) },
		b.Defragment,
		func() { b.TrimLeft(2) },
		func() { b.Write([]byte("mnopqrstu")) },
		func() { b.TrimRight(1) },
		b.Defragment,
		func() { b.Read(scratch) },
	}

	for i, op := range ops {
		op()
		if b.Space()+b.Len() > b.Cap() {
			t.Fatalf("step %d: space %d + length %d exceeds capacity %d", i, b.Space(), b.Len(), b.Cap())
		}
	}
}

func TestReadEmpty(t *testing.T) {
	b := New(4)

	_, err := b.Read(make([]byte, 1))
	test.ErrorIs(t, err, io.EOF)

	_, err = b.ReadByte()
	test.ErrorIs(t, err, io.EOF)
}

func TestPeekDoesNotConsume(t *testing.T) {
	b := New(8)
	b.Write([]byte("abc"))

	p := make([]byte, 2)
	test.Equal(t, 2, b.PeekAt(p, 1))
	test.Equal(t, "bc", string(p))
	test.Equal(t, 3, b.Len())

	c, ok := b.PeekByte(0)
	test.True(t, ok, "expected byte at offset 0")
	test.Equal(t, byte('a'), c)

	_, ok = b.PeekByte(3)
	test.True(t, !ok, "offset past end must not be readable")
	test.Equal(t, 0, b.PeekAt(p, 5))
}

func TestTrimClampsAndCollapses(t *testing.T) {
	b := New(8)
	b.Write([]byte("abcdef"))

	b.TrimLeft(2)
	test.Equal(t, "cdef", string(b.Bytes()))

	b.TrimRight(1)
	test.Equal(t, "cde", string(b.Bytes()))

	b.TrimLeft(100)
	test.Equal(t, 0, b.Len())
	test.Equal(t, 8, b.Space())

	b.Write([]byte("xy"))
	b.TrimRight(100)
	test.Equal(t, 0, b.Len())
}

func TestContains(t *testing.T) {
	b := New(16)
	b.Write([]byte("GET / HTTP/1.1\r\n"))

	test.True(t, b.Contains([]byte("\r\n")), "expected CRLF")
	test.True(t, !b.Contains([]byte("POST")), "unexpected POST")

	b.TrimLeft(4)
	test.True(t, !b.Contains([]byte("GET")), "consumed bytes must not match")
}

func TestClearZeroesStorage(t *testing.T) {
	b := New(8)
	b.Write([]byte("password"))
	b.Clear()

	test.Equal(t, 0, b.Len())
	for i, c := range b.data {
		if c != 0 {
			t.Fatalf("byte %d not zeroed: %x", i, c)
		}
	}
}

func TestFillAndWriteTo(t *testing.T) {
	b := New(4)
	r := strings.NewReader("abcdefghij")

	var out bytes.Buffer
	for {
		_, err := b.Fill(r)
		if b.Len() > 0 {
			_, werr := b.WriteTo(&out)
			test.NoError(t, werr)
		}
		if err == io.EOF {
			break
		}
	}

	test.Equal(t, "abcdefghij", out.String())
	test.Equal(t, 0, b.Len())
}

func BenchmarkWriteRead(b *testing.B) {
	buf := New(4096)
	payload := bytes.Repeat([]byte("x"), 1024)
	out := make([]byte, 1024)

	for b.Loop() {
		buf.Write(payload)
		buf.Read(out)
	}
}
