package callcache

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/phrazzld/gitsong/internal/domain"
)

// Fingerprint is the hex digest identifying one logical external request.
type Fingerprint string

// String implements fmt.Stringer.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns a 12 character prefix for log lines.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// NewFingerprint hashes the request identity. Parameters are canonicalised
// through JSON so that maps with the same keys and values produce the same
// digest regardless of insertion order; numbers keep their textual form.
func NewFingerprint(service, method, endpoint string, params any) (Fingerprint, error) {
	canonical, err := Canonicalize(params)
	if err != nil {
		return "", fmt.Errorf("%w: cannot canonicalize parameters for %s %s: %v",
			domain.ErrValidation, service, endpoint, err)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("failed to initialise fingerprint hash: %w", err)
	}
	for _, part := range [][]byte{
		[]byte(service),
		[]byte(strings.ToUpper(method)),
		[]byte(endpoint),
		canonical,
	} {
		// Length prefixes keep ("ab","c") distinct from ("a","bc").
		fmt.Fprintf(h, "%d:", len(part))
		h.Write(part)
	}

	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// Canonicalize returns the canonical JSON encoding of params: object keys
// sorted, no insignificant whitespace, numbers preserved verbatim.
func Canonicalize(params any) ([]byte, error) {
	if params == nil {
		return []byte("null"), nil
	}

	var raw []byte
	switch p := params.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	// encoding/json writes map keys in sorted order.
	return json.Marshal(generic)
}
