package meetings

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
)

// Namespace is the cache key prefix for meeting search results. Any meeting
// mutation invalidates the whole namespace.
const Namespace = "meetings:"

// cacheKey derives a deterministic key from the full parameter set. Pairs are
// sorted before hashing so parameter order never changes the key.
func cacheKey(params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	sum := sha1.Sum([]byte(strings.Join(pairs, "&")))
	return Namespace + hex.EncodeToString(sum[:])
}
