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

// Package registry implements the in-memory, crash-recoverable document
// registry: registration, the releasability Bloom index, per-organization
// encrypted metadata envelopes, and an HMAC-signed flat-file snapshot.
package registry

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
)

// bloomBits is the fixed filter size mandated by §4.3: 1024 bits.
const bloomBits = 1024

// bloomHashCount is the number of SHA-256-seeded hash functions.
const bloomHashCount = 3

// BloomFilter is the §4.3 releasability index. It is advisory only: the
// authoritative membership check is always the plaintext releasableTo set.
type BloomFilter struct {
	bits *bitset.BitSet
}

// NewBloomFilter returns an empty 1024-bit filter.
func NewBloomFilter() *BloomFilter {
	return &BloomFilter{bits: bitset.New(bloomBits)}
}

// bloomHash implements h_i(x) = UInt32BE(SHA256(x || i)) for i in {0,1,2}.
func bloomHash(x string, seed byte) uint32 {
	h := sha256.Sum256(append([]byte(x), seed))
	return binary.BigEndian.Uint32(h[:4])
}

// Insert sets the three bits h_i(x) mod m for i in {0,1,2}.
func (b *BloomFilter) Insert(x string) {
	for i := byte(0); i < bloomHashCount; i++ {
		b.bits.Set(uint(bloomHash(x, i) % bloomBits))
	}
}

// Contains reports whether all three of x's bits are set. A true result is
// only a "maybe" in set terms; false positives are expected and handled by
// the caller checking the authoritative plaintext set.
func (b *BloomFilter) Contains(x string) bool {
	for i := byte(0); i < bloomHashCount; i++ {
		if !b.bits.Test(uint(bloomHash(x, i) % bloomBits)) {
			return false
		}
	}
	return true
}

// Rebuild clears the filter and inserts every member of ids. Used whenever
// releasableTo changes, so the filter never needs a remove operation.
func (b *BloomFilter) Rebuild(ids []string) {
	b.bits.ClearAll()
	for _, id := range ids {
		b.Insert(id)
	}
}

// Bytes returns the filter's backing bit array as raw bytes, in
// little-endian word order as produced by bitset.Bytes.
func (b *BloomFilter) Bytes() []byte {
	words := b.bits.Bytes()
	buf := make([]byte, len(words)*8)
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	return buf
}

// Base64 renders the filter for the persisted snapshot format.
func (b *BloomFilter) Base64() string {
	return base64.StdEncoding.EncodeToString(b.Bytes())
}

// FromBase64 reconstructs a BloomFilter from its persisted form.
func FromBase64(encoded string) (*BloomFilter, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	words := make([]uint64, len(raw)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	bs := bitset.From(words)
	if bs.Len() < bloomBits {
		bs = bs.Resize(bloomBits)
	}
	return &BloomFilter{bits: bs}, nil
}
