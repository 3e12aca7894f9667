package field

import (
	"encoding/xml"
	"strings"
)

// WriteElement writes one <field> element.
func WriteElement(b *strings.Builder, e Element) {
	b.WriteString(`<field name="`)
	_ = xml.EscapeText(b, []byte(e.Name))
	b.WriteString(`"`)
	if e.Boost > 0 {
		b.WriteString(` boost="`)
		b.WriteString(FormatBoost(e.Boost))
		b.WriteString(`"`)
	}
	b.WriteString(">")
	_ = xml.EscapeText(b, []byte(e.Value))
	b.WriteString("</field>")
}

// Escape returns s escaped for XML character data.
func Escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
