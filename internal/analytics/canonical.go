package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalJSON returns deterministic JSON bytes for fingerprinting.
// encoding/json already sorts map keys, so normalizing to maps is enough.
func canonicalJSON(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return json.Marshal(decoded)
}

// fingerprintJSON returns a SHA-256 hex digest of the canonical JSON.
func fingerprintJSON(value any) (string, error) {
	data, err := canonicalJSON(value)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
