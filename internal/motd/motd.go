// Package motd converts Minecraft server greetings, either legacy
// paragraph-coded strings or JSON chat components, into plain and HTML
// renderings.
package motd

import (
	"fmt"
	"html"
	"strings"

	"github.com/minescope/minescope/internal/domain"
)

const sectionSign = '§'

// colorHex maps legacy color codes to CSS hex values.
var colorHex = map[byte]string{
	'0': "#000000", '1': "#0000AA", '2': "#00AA00", '3': "#00AAAA",
	'4': "#AA0000", '5': "#AA00AA", '6': "#FFAA00", '7': "#AAAAAA",
	'8': "#555555", '9': "#5555FF", 'a': "#55FF55", 'b': "#55FFFF",
	'c': "#FF5555", 'd': "#FF55FF", 'e': "#FFFF55", 'f': "#FFFFFF",
}

// colorCode maps chat-component color names to legacy codes.
var colorCode = map[string]byte{
	"black": '0', "dark_blue": '1', "dark_green": '2', "dark_aqua": '3',
	"dark_red": '4', "dark_purple": '5', "gold": '6', "gray": '7',
	"dark_gray": '8', "blue": '9', "green": 'a', "aqua": 'b',
	"red": 'c', "light_purple": 'd', "yellow": 'e', "white": 'f',
}

// Parse accepts a decoded "description" value, either a legacy-coded string
// or a JSON chat component object, and renders all three forms.
func Parse(v interface{}) *domain.MOTD {
	raw := Flatten(v)
	return &domain.MOTD{
		Raw:   raw,
		Clean: Clean(raw),
		HTML:  ToHTML(raw),
	}
}

// Flatten reduces a chat component tree to a single legacy-coded string.
// Strings pass through unchanged.
func Flatten(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case map[string]interface{}:
		var b strings.Builder
		flattenComponent(c, &b)
		return b.String()
	case []interface{}:
		var b strings.Builder
		for _, e := range c {
			b.WriteString(Flatten(e))
		}
		return b.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func flattenComponent(c map[string]interface{}, b *strings.Builder) {
	if color, ok := c["color"].(string); ok {
		if code, ok := colorCode[color]; ok {
			b.WriteRune(sectionSign)
			b.WriteByte(code)
		}
	}
	for flag, code := range map[string]byte{
		"obfuscated": 'k', "bold": 'l', "strikethrough": 'm',
		"underlined": 'n', "italic": 'o',
	} {
		if on, ok := c[flag].(bool); ok && on {
			b.WriteRune(sectionSign)
			b.WriteByte(code)
		}
	}
	if text, ok := c["text"].(string); ok {
		b.WriteString(text)
	}
	if extra, ok := c["extra"].([]interface{}); ok {
		for _, e := range extra {
			b.WriteString(Flatten(e))
		}
	}
}

// Clean strips every paragraph-sign formatting pair from s. Codes are
// case-insensitive; an unknown or trailing code character is preserved.
// A pair that only forms once an inner pair is removed ("§§aa") is stripped
// too, so Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if n := len(out); n > 0 && out[n-1] == sectionSign && isFormatCode(r) {
			out = out[:n-1]
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func isFormatCode(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		return true
	case r >= 'k' && r <= 'o', r >= 'K' && r <= 'O':
		return true
	case r == 'r' || r == 'R':
		return true
	}
	return false
}

// ToHTML renders a legacy-coded string as HTML spans. Format spans nest
// inside the current color span; a color code or §r closes every open span.
// Text content is escaped; newlines become <br>.
func ToHTML(s string) string {
	var b strings.Builder
	open := 0
	flush := func() {
		for ; open > 0; open-- {
			b.WriteString("</span>")
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == sectionSign && i+1 < len(runes) && isFormatCode(runes[i+1]) {
			code := toLower(runes[i+1])
			i++
			switch {
			case code == 'r':
				flush()
			case code >= 'k' && code <= 'o':
				b.WriteString(`<span style="`)
				b.WriteString(styleFor(byte(code)))
				b.WriteString(`">`)
				open++
			default:
				// Color codes reset prior formatting.
				flush()
				b.WriteString(`<span style="color: `)
				b.WriteString(colorHex[byte(code)])
				b.WriteString(`">`)
				open++
			}
			continue
		}
		if r == '\n' {
			b.WriteString("<br>")
			continue
		}
		b.WriteString(html.EscapeString(string(r)))
	}
	flush()
	return b.String()
}

func styleFor(code byte) string {
	switch code {
	case 'l':
		return "font-weight: bold"
	case 'm':
		return "text-decoration: line-through"
	case 'n':
		return "text-decoration: underline"
	case 'o':
		return "font-style: italic"
	default: // 'k'
		return "opacity: 0.6"
	}
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
