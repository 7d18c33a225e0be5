// Copyright 2022 Piprate Limited
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reencrypt

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

const nonceTTL = 5 * time.Minute

// nonceCache is a process-local replay cache with a 5-minute TTL, per
// §4.4 step 2. Admit is a check-and-set guarded by a single mutex so two
// concurrent verifications can never both admit the same nonce; admitted
// counts an atomic.Int64 for lightweight introspection without taking the
// lock.
type nonceCache struct {
	mu       sync.Mutex
	seenAt   map[string]time.Time
	admitted atomic.Int64
}

func newNonceCache() *nonceCache {
	return &nonceCache{seenAt: make(map[string]time.Time)}
}

// Admit returns true if nonce has not been seen within the TTL window
// (and records it), false if it's a replay.
func (c *nonceCache) Admit(nonce string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seenAt, found := c.seenAt[nonce]; found && now.Sub(seenAt) < nonceTTL {
		return false
	}

	c.seenAt[nonce] = now
	c.admitted.Inc()
	return true
}

// Sweep removes nonces older than the TTL window, relative to now, and
// returns how many it removed. Nothing in this module schedules it; the
// map grows until a caller sweeps it.
func (c *nonceCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for nonce, seenAt := range c.seenAt {
		if now.Sub(seenAt) >= nonceTTL {
			delete(c.seenAt, nonce)
			removed++
		}
	}
	return removed
}

func (c *nonceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seenAt)
}
