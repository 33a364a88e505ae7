package snapshot

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Canonical returns s with every nil list replaced by an empty one, so two
// semantically equal snapshots always serialize to the same bytes.
func Canonical(s GameSnapshot) GameSnapshot {
	if s.Arrows == nil {
		s.Arrows = []Arrow{}
	}
	if s.MarkedSquares == nil {
		s.MarkedSquares = []Mark{}
	}
	if s.Hints == nil {
		s.Hints = []string{}
	}
	if s.MoveList == nil {
		s.MoveList = []MoveEntry{}
	}
	if s.CapturedPieces.White.Pieces == nil {
		s.CapturedPieces.White.Pieces = []string{}
	}
	if s.CapturedPieces.Black.Pieces == nil {
		s.CapturedPieces.Black.Pieces = []string{}
	}
	return s
}

// Marshal serialises the canonical form of s to JSON.
func Marshal(s GameSnapshot) ([]byte, error) {
	return json.Marshal(Canonical(s))
}

// Unmarshal deserialises a GameSnapshot from JSON.
func Unmarshal(data []byte) (GameSnapshot, error) {
	var s GameSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return GameSnapshot{}, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return s, nil
}

// Hash returns the SHA-256 hex digest of the canonical serialization.
func Hash(s GameSnapshot) string {
	data, err := Marshal(s)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}
