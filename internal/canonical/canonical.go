// Package canonical produces deterministic JSON for state snapshots.
//
// Engines use it so that the same logical state always serializes to the
// same bytes, which makes snapshot content hashes stable across processes
// and makes stored bodies diffable. It differs from encoding/json in three
// ways: object keys are emitted in sorted order, strings are NFC
// normalized, and HTML characters are not escaped.
//
// Unlike hash inputs for structured identity, snapshots are arbitrary user
// state, so null and floating-point values are permitted.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Marshal serializes v to canonical JSON.
//
// v may be any JSON-able value: primitives, maps, slices, or structs.
// Structs and typed maps are first lowered through encoding/json, with
// numbers preserved as json.Number to avoid float64 precision loss.
func Marshal(v any) ([]byte, error) {
	lowered, err := lower(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := encode(&buf, lowered); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the hex-encoded SHA-256 of the canonical encoding of v.
func Hash(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Unmarshal decodes canonical (or any) JSON into the generic value shapes
// produced by lower: map[string]any, []any, string, json.Number, bool, nil.
func Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return v, nil
}

// lower converts v into the generic JSON value shapes. Values that are
// already generic pass through; everything else round-trips through
// encoding/json once.
func lower(v any) (any, error) {
	switch v.(type) {
	case nil, bool, string, json.Number, float64, int, int64, map[string]any, []any:
		return v, nil
	}

	lowered, err := lowerForeign(v)
	if err != nil {
		return nil, fmt.Errorf("lower %T: %w", v, err)
	}
	return lowered, nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return encodeString(buf, val)
	case json.Number:
		buf.WriteString(val.String())
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		return encodeObject(buf, val)
	default:
		// Nested non-generic values (structs inside a state map, typed
		// slices) get lowered on the fly. json.Marshal rejects anything
		// that is genuinely not JSON-able.
		lowered, err := lowerForeign(v)
		if err != nil {
			return fmt.Errorf("unsupported type for canonical JSON: %T: %w", v, err)
		}
		return encode(buf, lowered)
	}
	return nil
}

func lowerForeign(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func encodeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, obj[k]); err != nil {
			return fmt.Errorf("object[%q]: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeString emits an NFC-normalized JSON string without HTML escaping.
func encodeString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return fmt.Errorf("encode string: %w", err)
	}
	// Encoder appends a newline; strip it.
	buf.Truncate(buf.Len() - 1)
	return nil
}
