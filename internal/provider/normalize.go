package provider

import (
	"encoding/json"
	"strings"
)

// Field names providers use for a url-like artifact, in priority order.
var urlLikeKeys = []string{"image", "url", "image_url", "video", "video_url", "audio_url", "text"}

// Keys under which providers return a list of results.
var listKeys = []string{"output", "images", "results", "outputs", "urls"}

// NormalizeOutput extracts a single canonical result string from a raw
// completion payload. Shapes are tried strictly in order: a direct string
// payload, a nested "output" field (string or an object with a url-like
// field), a list of results (first element), then a top-level url-like
// field. When nothing matches it reports false; callers must treat that as
// a failure, never as success with a missing artifact.
func NormalizeOutput(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return nonEmpty(direct)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		// A bare top-level array counts as a list of results.
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil {
			return firstElement(list)
		}
		return "", false
	}

	if out, ok := obj["output"]; ok {
		var s string
		if err := json.Unmarshal(out, &s); err == nil {
			return nonEmpty(s)
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(out, &nested); err == nil {
			if v, ok := urlLike(nested); ok {
				return v, true
			}
		}
	}

	for _, key := range listKeys {
		val, ok := obj[key]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(val, &list); err != nil {
			continue
		}
		if v, ok := firstElement(list); ok {
			return v, true
		}
	}

	if v, ok := urlLike(obj); ok {
		return v, true
	}
	return "", false
}

func firstElement(list []json.RawMessage) (string, bool) {
	if len(list) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(list[0], &s); err == nil {
		return nonEmpty(s)
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(list[0], &nested); err == nil {
		return urlLike(nested)
	}
	return "", false
}

func urlLike(obj map[string]json.RawMessage) (string, bool) {
	for _, key := range urlLikeKeys {
		val, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(val, &s); err == nil && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

func nonEmpty(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
