package compiler

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeSource converts raw source bytes to UTF-8 text with "\n" line
// endings.
//
// A named encoding is looked up in the WHATWG index ("utf-8", "shift_jis",
// "windows-1252", ...). Without a name, a UTF-8 or UTF-16 byte order mark
// selects the encoding; otherwise valid UTF-8 is taken as is and anything
// else is read as Latin-1.
func DecodeSource(data []byte, name string) (string, error) {
	var text string
	if name != "" {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return "", fmt.Errorf("unknown encoding %q: %w", name, err)
		}
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("failed to decode as %s: %w", name, err)
		}
		text = string(out)
	} else {
		out, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), data)
		if err != nil {
			return "", err
		}
		if !utf8.Valid(out) {
			out, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
			if err != nil {
				return "", err
			}
		}
		text = string(out)
	}
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
