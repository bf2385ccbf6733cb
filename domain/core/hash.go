package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	ConfigHash  Hash
	SampleHash  Hash
	CodeVersion Hash
)

// Constructors
func NewConfigHash(data []byte) ConfigHash   { return ConfigHash(NewHash(data)) }
func NewSampleHash(data []byte) SampleHash   { return SampleHash(NewHash(data)) }
func NewCodeVersion(data []byte) CodeVersion { return CodeVersion(NewHash(data)) }

// String conversions
func (h ConfigHash) String() string  { return Hash(h).String() }
func (h SampleHash) String() string  { return Hash(h).String() }
func (h CodeVersion) String() string { return Hash(h).String() }

// ComputeConfigHash hashes configuration parameters in sorted key order so
// that equivalent configurations always produce the same hash.
func ComputeConfigHash(params map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", params[key]))
	}

	return NewConfigHash([]byte(data.String()))
}

// ComputeSampleHash fingerprints an ordered float sequence down to the bit
// level, so two sample sets compare equal only when byte-identical.
func ComputeSampleHash(values []float64) SampleHash {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return NewSampleHash(buf)
}
