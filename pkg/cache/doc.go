// Package cache provides a generic, size-bounded cache whose entries expire
// after a fixed time to live.
//
// Eviction is least recently used once the cache is full. Expired entries
// are dropped lazily on access, so a cache owns no goroutines and needs no
// Close. Hit, miss and eviction counts are always tracked and are also
// exported to Prometheus when WithMetrics is given.
//
//	c, err := cache.New[*Account](256, time.Minute,
//		cache.WithMetrics[*Account](registry, "api_credentials"))
//	c.Set(key, account)
//	if a, ok := c.Get(key); ok { ... }
//	c.DeleteFunc(func(_ string, a *Account) bool { return a.Username == name })
package cache
