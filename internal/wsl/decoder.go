package wsl

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// StreamDecoder incrementally decodes one console output channel. Read
// chunk boundaries may split a multi-byte sequence; the undecodable tail
// is buffered and prefixed to the next chunk. Instances hold per-channel
// state and must not be shared between stdout and stderr.
type StreamDecoder struct {
	pending []byte
}

func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{}
}

// Decode consumes the next chunk and returns every complete character seen
// so far. Invalid sequences decode to U+FFFD; decoding never fails.
func (d *StreamDecoder) Decode(p []byte) string {
	if len(p) == 0 && len(d.pending) == 0 {
		return ""
	}
	buf := append(d.pending, p...)
	d.pending = nil

	// Hold back at most one incomplete trailing sequence. Trailing bytes
	// with no rune start within UTFMax are invalid and decode lossily now.
	cut := len(buf)
	for back := 1; back <= utf8.UTFMax && back <= len(buf); back++ {
		b := buf[len(buf)-back]
		if utf8.RuneStart(b) {
			if !utf8.FullRune(buf[len(buf)-back:]) {
				cut = len(buf) - back
			}
			break
		}
	}
	d.pending = append(d.pending, buf[cut:]...)
	if cut == 0 {
		return ""
	}
	return decodeLossy(buf[:cut])
}

// Flush drains any buffered tail at end of stream using lossy decoding
// rather than discarding it.
func (d *StreamDecoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out := decodeLossy(d.pending)
	d.pending = nil
	return out
}

func decodeLossy(b []byte) string {
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, []byte("�")))
	}
	return string(out)
}

// DecodeConsole decodes a complete captured output buffer. WSL_UTF8 forces
// UTF-8 on current tool builds, but legacy console hosts still emit
// UTF-16LE, so the buffer is sniffed before decoding.
func DecodeConsole(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if looksUTF16(b) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if out, _, err := transform.Bytes(dec, b); err == nil {
			return string(out)
		}
	}
	return decodeLossy(b)
}

// looksUTF16 sniffs for a BOM or the NUL density of wide-encoded ASCII.
// UTF-8 console text never contains NUL bytes.
func looksUTF16(b []byte) bool {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xFE {
		return true
	}
	if len(b) < 4 {
		return false
	}
	n := len(b)
	if n > 512 {
		n = 512
	}
	zeros := 0
	for _, c := range b[:n] {
		if c == 0 {
			zeros++
		}
	}
	return zeros*4 >= n
}
