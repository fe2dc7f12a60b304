package cache

import "time"

// Cache is the key/value backend under the staleness store. Values written
// to a remote backend come back as decoded JSON, not the original type.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	SetWithTTL(key string, value interface{}, ttl time.Duration)
	Delete(key string)
	Clear()
}
