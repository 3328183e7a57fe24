// Package hashkey reduces a text payload to a fixed-width content hash
// used as the Cache key (spec.md §3).
package hashkey

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"

	"speechpool/config"
)

// Key is the hex-encoded content hash of a text payload.
type Key string

// Of hashes text's UTF-8 bytes under algo. MD5 is the default, matching
// the original speech_pool implementation and spec.md §3; SHA-256 is
// offered for deployments worried about adversarial collisions (spec.md
// §9 Open Question — "hash length").
func Of(text string, algo config.HashAlgorithm) Key {
	switch algo {
	case config.HashSHA256:
		sum := sha256.Sum256([]byte(text))
		return Key(hex.EncodeToString(sum[:]))
	default:
		sum := md5.Sum([]byte(text))
		return Key(hex.EncodeToString(sum[:]))
	}
}
