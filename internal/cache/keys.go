package cache

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// DefaultHintTTL bounds how long reverse-image-search output is reused for
// identical submissions.
const DefaultHintTTL = 6 * time.Hour

// HintKey generates the Redis key for cached hint-source output. Identical
// image bytes with an identical preference map to the same key.
func HintKey(image []byte, preference string) string {
	digest := sha256.Sum256(image)
	prefDigest := sha256.Sum256([]byte(preference))
	return fmt.Sprintf("cache:v1:hints:%x:%x", digest[:8], prefDigest[:4])
}
