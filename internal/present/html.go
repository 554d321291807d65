// Package present renders stored structured data for display.
package present

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/loic-ops/medical-transcription/domain/entities"
)

const (
	emptyPlaceholder = `<p style="color: #999; text-align: center; padding: 20px;">Aucune donnee</p>`
	emptyValue       = `<em style="color:#999;">-</em>`

	tableOpen  = `<table class="table table-sm table-bordered" style="width: 100%; border-collapse: collapse;">`
	labelStyle = `style="width: 35%; background-color: #f8f9fa; font-weight: 600; padding: 6px 10px; vertical-align: top;"`
	valueStyle = `style="padding: 6px 10px; vertical-align: top;"`
	preStyle   = `style="white-space: pre-wrap; margin: 0; font-size: 12px;"`
)

// StructuredDataHTML renders a serialized mapping as a two-column
// label/value table. An absent payload renders the empty placeholder; a
// payload that is not valid JSON, or not a mapping, is shown raw inside a
// <pre>. It never fails.
func StructuredDataHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return emptyPlaceholder
	}

	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return preformatted(raw)
	}

	data, ok := value.(map[string]interface{})
	if !ok {
		return preformatted(indent(value, raw))
	}
	if len(data) == 0 {
		return emptyPlaceholder
	}
	return table(data, objectKeys(raw))
}

// objectKeys lists the top-level keys of a JSON object in document order
func objectKeys(raw string) []string {
	dec := json.NewDecoder(strings.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}

	var keys []string
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

func table(data map[string]interface{}, keys []string) string {
	var b strings.Builder
	b.WriteString(tableOpen)
	b.WriteString("<tbody>")
	for _, k := range keys {
		fmt.Fprintf(&b, "<tr><td %s>%s</td><td %s>%s</td></tr>",
			labelStyle, html.EscapeString(entities.TitleCaseKey(k)),
			valueStyle, cell(data[k]))
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return emptyValue
	case string:
		if strings.TrimSpace(val) == "" {
			return emptyValue
		}
		return strings.ReplaceAll(html.EscapeString(val), "\n", "<br/>")
	case map[string]interface{}:
		if len(val) == 0 {
			return emptyValue
		}
		return preformatted(indent(val, ""))
	case []interface{}:
		if len(val) == 0 {
			return emptyValue
		}
		return preformatted(indent(val, ""))
	case bool:
		if val {
			return "Oui"
		}
		return "Non"
	default:
		return html.EscapeString(fmt.Sprint(val))
	}
}

func preformatted(text string) string {
	return fmt.Sprintf("<pre %s>%s</pre>", preStyle, html.EscapeString(text))
}

// indent pretty-prints v, keeping non-ASCII characters as-is
func indent(v interface{}, fallback string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fallback
	}
	return strings.TrimRight(buf.String(), "\n")
}
