package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// refPattern is the canonical blob-reference grammar: a lowercase scheme,
// "://", then a path restricted to a conservative character set. Anything
// failing this grammar is rejected at the boundary, never inside the engine.
var refPattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://[A-Za-z0-9][A-Za-z0-9._/-]*$`)

// Evidence blob kinds referenced by run artifacts and reviewer snapshots.
const (
	KindStrategyCode   = "strategy_code"
	KindBacktestReport = "backtest_report"
	KindTrades         = "trades"
	KindExecutionLogs  = "execution_logs"
	KindChartPayload   = "chart_payload"
)

// BlobRef is a checksummed reference to an evidence blob. The reference uses
// the canonical scheme://path grammar and the checksum is the hex-encoded
// SHA-256 of the blob payload.
type BlobRef struct {
	Kind   string `json:"kind"`
	Ref    string `json:"ref"`
	SHA256 string `json:"sha256"`
}

// RefError reports a reference that failed the canonical grammar or a
// checksum that did not verify.
type RefError struct {
	Ref    string
	Reason string
}

// Error implements the error interface.
func (e *RefError) Error() string {
	return fmt.Sprintf("invalid blob reference %q: %s", e.Ref, e.Reason)
}

// ValidateRef checks a reference string against the canonical grammar.
func ValidateRef(ref string) error {
	if ref == "" {
		return &RefError{Ref: ref, Reason: "empty reference"}
	}
	if !refPattern.MatchString(ref) {
		return &RefError{Ref: ref, Reason: "does not match scheme://path grammar"}
	}
	return nil
}

// Checksum computes the hex-encoded SHA-256 of a blob payload.
func Checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// NewBlobRef builds a checksummed blob reference, validating the reference
// grammar first.
func NewBlobRef(kind, ref string, payload []byte) (BlobRef, error) {
	if err := ValidateRef(ref); err != nil {
		return BlobRef{}, err
	}
	return BlobRef{Kind: kind, Ref: ref, SHA256: Checksum(payload)}, nil
}

// Verify re-hashes a retrieved payload and compares it against the stored
// checksum. Retrieved payloads must never be trusted before this passes.
func (r BlobRef) Verify(payload []byte) error {
	if got := Checksum(payload); got != r.SHA256 {
		return &RefError{Ref: r.Ref, Reason: "checksum mismatch"}
	}
	return nil
}
