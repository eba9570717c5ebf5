package request

import (
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// Placeholders substituted for binary multipart content in [Describe].
const (
	RedactedMemory = "<binary data from memory>"
	RedactedFile   = "<binary data from file>"
)

// Describe renders b for a debug trace. Binary multipart content is
// replaced with a placeholder and never read.
func Describe(b Body) string {
	switch b := b.(type) {
	case nil, None:
		return "null"

	case Plain:
		return b.Text

	case JSON:
		return pretty(b.Params)

	case Query:
		keys := slices.Sorted(maps.Keys(b.Params))
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + b.Params[k]
		}
		return strings.Join(pairs, "&")

	case Multipart:
		form := make(map[string]string, len(b.Fields)+len(b.Files))
		maps.Copy(form, b.Fields)
		for _, f := range b.Files {
			switch f := f.(type) {
			case InMemory:
				form[f.FieldName] = RedactedMemory
			case OnDisk:
				form[f.FieldName] = RedactedFile
			}
		}
		return pretty(form)
	}

	return "<unknown body>"
}

func pretty(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "<unprintable: " + err.Error() + ">"
	}

	return string(data)
}
