package schemadiff

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ParsaBazrpash/MirrorAPI/pkg/utils"
)

// MaxValueLength caps rendered values in insight prompts.
const MaxValueLength = 100

// ValueAtPath resolves a dotted path such as "user.addresses[0].city" against a decoded JSON
// document. Any missing key, bad index, or null along the way yields nil. Walk paths of the
// form "items[]" have no index and never resolve.
func ValueAtPath(doc any, path string) any {
	current := doc
	for _, seg := range strings.Split(path, ".") {
		key, indices, ok := parseSegment(seg)
		if !ok {
			return nil
		}
		if key != "" || len(indices) == 0 {
			obj, isObj := current.(map[string]any)
			if !isObj {
				return nil
			}
			current = obj[key]
		}
		for _, idx := range indices {
			arr, isArr := current.([]any)
			if !isArr || idx < 0 || idx >= len(arr) {
				return nil
			}
			current = arr[idx]
		}
		if current == nil {
			return nil
		}
	}
	return current
}

// parseSegment splits "key[1][2]" into "key" and [1 2].
func parseSegment(seg string) (string, []int, bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, nil, true
	}
	key := seg[:open]
	var indices []int
	rest := seg[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, false
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, false
		}
		indices = append(indices, n)
		rest = rest[end+1:]
	}
	return key, indices, true
}

// FormatValue renders scalars as text and everything else as compact JSON, truncated to
// MaxValueLength characters.
func FormatValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		s = strconv.FormatBool(x)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		s = x.String()
	case int:
		s = strconv.Itoa(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		s = string(b)
	}
	return utils.Truncate(s, MaxValueLength)
}
