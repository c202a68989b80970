package agentrpc

import "encoding/json"

// Canonicalize re-marshals arbitrary JSON into a deterministic form (Go's
// encoding/json sorts map keys when marshaling map[string]interface{}), so
// two payloads that differ only in key order or whitespace compare equal.
// SetupHSM and SetupPolicy use it (through canonicalEqual) to decide whether
// the agent's current copy differs from the data being pushed, and so
// whether to issue an update.
func Canonicalize(raw json.RawMessage) (string, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// canonicalEqual reports whether two JSON payloads are equal once
// canonicalized. A malformed payload on either side is reported as an
// error, never as "differs".
func canonicalEqual(a, b json.RawMessage) (bool, error) {
	ca, err := Canonicalize(a)
	if err != nil {
		return false, err
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return false, err
	}
	return ca == cb, nil
}
