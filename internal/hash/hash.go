// Package hash provides digest computation for build manifests.
//
// The buildinfo manifest records a SHA-256 digest of the kept package list
// so that two builds can be compared for determinism without diffing the
// whole list. The package provides a real implementation using
// crypto/sha256 and a fake implementation for testing.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher provides an abstraction for digest computation.
type Hasher interface {
	// SumList computes a stable digest over an ordered list of strings.
	SumList(items []string) string
}

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// SumList computes the SHA-256 digest of the newline-joined items.
func (h *SHA256Hasher) SumList(items []string) string {
	sum := sha256.Sum256([]byte(strings.Join(items, "\n")))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// FakeHasher implements Hasher with a fixed digest for testing.
type FakeHasher struct {
	// Digest is returned from every SumList call.
	Digest string
}

// SumList returns the fixed digest.
func (h *FakeHasher) SumList(items []string) string {
	return h.Digest
}
