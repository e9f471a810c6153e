package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainScript = "scriptdelta/script/v1"
	DomainSlice  = "scriptdelta/slice/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // separator prevents domain/data boundary ambiguity
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the domain-separated hash of v's canonical JSON.
func Fingerprint(domain string, v any) (string, error) {
	generic, err := ToCanonicalValue(v)
	if err != nil {
		return "", err
	}
	canonical, err := MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ScriptFingerprint identifies the content of a script version. Two scripts
// with the same fingerprint produce no change events when compared.
func ScriptFingerprint(s *Script) (string, error) {
	if s == nil {
		return "", nil
	}
	return Fingerprint(DomainScript, s)
}

// MustScriptFingerprint is like ScriptFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustScriptFingerprint(s *Script) string {
	fp, err := ScriptFingerprint(s)
	if err != nil {
		panic(err)
	}
	return fp
}
