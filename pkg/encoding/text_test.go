package encoding

import (
	"bytes"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

// encodeUTF16LE converts s to UTF-16LE bytes with a BOM, as written by
// Windows editors that save "Unicode" text.
func encodeUTF16LE(s string) ([]byte, error) {
	return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF})
}

func TestDecodeSource_PlainUTF8(t *testing.T) {
	got, err := DecodeSource([]byte("float4 color;\n"))
	if err != nil {
		t.Fatalf("DecodeSource failed: %v", err)
	}
	if got != "float4 color;\n" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestDecodeSource_StripsUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("uint a;")...)

	got, err := DecodeSource(data)
	if err != nil {
		t.Fatalf("DecodeSource failed: %v", err)
	}
	if got != "uint a;" {
		t.Errorf("expected BOM to be stripped, got %q", got)
	}
}

func TestDecodeSource_UTF16(t *testing.T) {
	data, err := encodeUTF16LE("struct VSInput {\r\n float3 p : POSITION;\r\n};")
	if err != nil {
		t.Fatalf("encodeUTF16LE failed: %v", err)
	}
	if !hasBOM(data) {
		t.Fatal("expected encoded data to carry a BOM")
	}

	got, err := DecodeSource(data)
	if err != nil {
		t.Fatalf("DecodeSource failed: %v", err)
	}
	want := "struct VSInput {\n float3 p : POSITION;\n};"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNormalizeNewlines(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a\nb", "a\nb"},
		{"a\r\nb", "a\nb"},
		{"a\rb", "a\nb"},
		{"a\r\n\r\nb\r", "a\n\nb\n"},
	}

	for _, tc := range tests {
		if got := NormalizeNewlines(tc.in); got != tc.want {
			t.Errorf("NormalizeNewlines(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHasBOM(t *testing.T) {
	if hasBOM([]byte("plain")) {
		t.Error("plain text reported as having a BOM")
	}
	if !hasBOM([]byte{0xFF, 0xFE, 'a', 0}) {
		t.Error("UTF-16LE BOM not detected")
	}
}
