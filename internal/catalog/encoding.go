package catalog

import (
	"bytes"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Encoding names accepted by import/export.
const (
	EncUTF8        = "utf-8"
	EncUTF16       = "utf-16"
	EncWindows1252 = "windows-1252"
	EncShiftJIS    = "shift_jis" // Excel の「ANSI（CP932）」
)

func lookupEncoding(name string) (encoding.Encoding, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EncUTF8, "utf8":
		return xunicode.UTF8, true
	case EncUTF16, "utf16":
		return xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM), true
	case EncWindows1252, "cp1252", "latin1":
		return charmap.Windows1252, true
	case EncShiftJIS, "sjis", "cp932":
		return japanese.ShiftJIS, true
	}
	return nil, false
}

// decodeInput converts a CSV upload to UTF-8. With name == "" the encoding is detected:
// a UTF-8/UTF-16 BOM wins, then valid UTF-8, else Windows-1252 (legacy spreadsheets).
func decodeInput(raw []byte, name string) (io.Reader, string, error) {
	if name != "" {
		enc, ok := lookupEncoding(name)
		if !ok {
			return nil, "", ErrInvalid("unsupported encoding: " + name)
		}
		return transform.NewReader(bytes.NewReader(raw), xunicode.BOMOverride(enc.NewDecoder())), strings.ToLower(name), nil
	}

	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return bytes.NewReader(raw[3:]), EncUTF8, nil
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}), bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		dec := xunicode.UTF16(xunicode.LittleEndian, xunicode.ExpectBOM).NewDecoder()
		return transform.NewReader(bytes.NewReader(raw), dec), EncUTF16, nil
	case utf8.Valid(raw):
		return bytes.NewReader(raw), EncUTF8, nil
	}
	return transform.NewReader(bytes.NewReader(raw), charmap.Windows1252.NewDecoder()), EncWindows1252, nil
}

// encodeOutput wraps w so that UTF-8 written to it comes out in the named encoding.
// Characters the target cannot represent are replaced rather than failing the export.
func encodeOutput(w io.Writer, name string) (io.Writer, error) {
	if name == "" {
		return w, nil
	}
	enc, ok := lookupEncoding(name)
	if !ok {
		return nil, ErrInvalid("unsupported encoding: " + name)
	}
	if enc == xunicode.UTF8 {
		return w, nil
	}
	return transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder())), nil
}

// fold normalizes s for searching: accents stripped, Unicode case folded.
// "Quijote", "QUIJOTE" and "quijoté" all fold to "quijote".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
