// Package extract pulls ephemeral values out of target responses: form
// tokens and one-time codes from rendered HTML, and fields from JSON API
// bodies. Extraction never fails hard; absence is returned to the caller,
// which decides whether it is fatal.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Attribute returns the named attribute of the first element matching the
// CSS selector. The second return is false when the element or attribute
// is absent, or when the body is not parseable HTML.
func Attribute(body []byte, selector, attr string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	return doc.Find(selector).First().Attr(attr)
}

// Text returns the visible text of the first element matching the CSS
// selector, trimmed. Empty string when the element is absent.
func Text(body []byte, selector string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// JSON extracts a value from a JSON body using a JSONPath expression
// ($.foo.bar), converted to gjson format. The second return is false when
// the body is not valid JSON or the path does not resolve.
func JSON(body []byte, jsonPath string) (gjson.Result, bool) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}
	value := gjson.GetBytes(body, convertJSONPath(jsonPath))
	return value, value.Exists()
}

// convertJSONPath converts JSONPath syntax to gjson path format.
// $.foo.bar -> foo.bar
// $.items[0].id -> items.0.id
// $.data[*].name -> data.#.name
func convertJSONPath(path string) string {
	if strings.HasPrefix(path, "$.") {
		path = path[2:]
	} else if strings.HasPrefix(path, "$") {
		path = path[1:]
	}

	var result strings.Builder
	i := 0
	for i < len(path) {
		if path[i] == '[' {
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if j < len(path) {
				content := path[i+1 : j]
				if content == "*" {
					result.WriteString(".#")
				} else {
					result.WriteByte('.')
					result.WriteString(content)
				}
				i = j + 1
				continue
			}
		}
		result.WriteByte(path[i])
		i++
	}

	return result.String()
}
