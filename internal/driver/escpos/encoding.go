package escpos

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// DefaultEncoding is used when a config leaves the encoding empty
const DefaultEncoding = "UTF-8"

// codepage binds a character encoding to the command that selects it on the device
type codepage struct {
	name     string
	selector []byte
	encoding encoding.Encoding // nil passes UTF-8 through
}

var codepages = map[string]codepage{
	"UTF8":   {name: "UTF-8"},
	"CP437":  {name: "CP437", selector: withArg(Commands.SelectCodepage, 0), encoding: charmap.CodePage437},
	"CP850":  {name: "CP850", selector: withArg(Commands.SelectCodepage, 2), encoding: charmap.CodePage850},
	"CP852":  {name: "CP852", selector: withArg(Commands.SelectCodepage, 18), encoding: charmap.CodePage852},
	"CP858":  {name: "CP858", selector: withArg(Commands.SelectCodepage, 19), encoding: charmap.CodePage858},
	"CP866":  {name: "CP866", selector: withArg(Commands.SelectCodepage, 17), encoding: charmap.CodePage866},
	"CP1252": {name: "CP1252", selector: withArg(Commands.SelectCodepage, 16), encoding: charmap.Windows1252},
	"GBK":    {name: "GBK", selector: Commands.KanjiMode, encoding: simplifiedchinese.GBK},
}

var codepageAliases = map[string]string{
	"PC437":       "CP437",
	"PC850":       "CP850",
	"PC852":       "CP852",
	"PC858":       "CP858",
	"PC866":       "CP866",
	"WINDOWS1252": "CP1252",
	"GB2312":      "GBK",
}

func normalizeEncoding(name string) string {
	key := strings.ToUpper(strings.TrimSpace(name))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if alias, ok := codepageAliases[key]; ok {
		return alias
	}
	return key
}

func lookupCodepage(name string) (codepage, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultEncoding
	}
	page, ok := codepages[normalizeEncoding(name)]
	if !ok {
		return codepage{}, fmt.Errorf("unsupported encoding %q", name)
	}
	return page, nil
}

// IsSupportedEncoding reports whether the renderer can encode text in name.
// An empty name selects DefaultEncoding.
func IsSupportedEncoding(name string) bool {
	_, err := lookupCodepage(name)
	return err == nil
}

// SupportedEncodings returns the canonical encoding names
func SupportedEncodings() []string {
	return []string{"UTF-8", "CP437", "CP850", "CP852", "CP858", "CP866", "CP1252", "GBK"}
}

// encode converts s to the device code page. Runes the page cannot
// represent become '?'.
func (c codepage) encode(s string) []byte {
	if c.encoding == nil {
		return []byte(s)
	}

	encoder := c.encoding.NewEncoder()
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		encoded, err := encoder.Bytes([]byte(string(r)))
		if err != nil || len(encoded) == 0 {
			encoder.Reset()
			out = append(out, '?')
			continue
		}
		out = append(out, encoded...)
	}
	return out
}
