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

package registry

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/clearancevault/core/clearance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOf(haystack, needle []byte) int {
	return bytes.Index(haystack, needle)
}

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	r, err := Open(Config{PersistPath: path, SigningKey: []byte("signing-key")})
	require.NoError(t, err)
	return r, path
}

func TestRegisterAndGet(t *testing.T) {
	r, _ := newTestRegistry(t)

	res, err := r.Register(NewRecordInput{
		DocumentDID:         "doc-1",
		ClassificationLevel: clearance.Confidential,
		ReleasableTo:        []string{"org-A"},
		BlobHandle:          BlobHandle{BlobID: "blob-1", Filename: "a.html"},
	}, map[string]any{"title": "Budget"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", res.DocumentDID)
	assert.Equal(t, 1, res.ReleasableToCount)

	rec, err := r.Get("doc-1", "org-A")
	require.NoError(t, err)
	assert.Equal(t, clearance.Confidential, rec.ClassificationLevel)

	_, err = r.Get("doc-1", "org-B")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = r.Get("doc-missing", "org-A")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyReleasableToNeverDiscoverable(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Register(NewRecordInput{
		DocumentDID:         "doc-2",
		ClassificationLevel: clearance.Internal,
		ReleasableTo:        nil,
		BlobHandle:          BlobHandle{BlobID: "blob-2"},
	}, nil)
	require.NoError(t, err)

	results := r.QueryByIssuer("org-A", clearance.TopSecret)
	assert.Empty(t, results)
}

func TestQueryByIssuerBloomFalsePositiveSafety(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Register(NewRecordInput{
		DocumentDID:         "doc-3",
		ClassificationLevel: clearance.Internal,
		ReleasableTo:        []string{"org-A"},
		BlobHandle:          BlobHandle{BlobID: "blob-3"},
	}, nil)
	require.NoError(t, err)

	rec, _ := r.FindByDocumentID("doc-3")

	// Search for a contrived issuer whose bits collide with org-A's but
	// which was never actually inserted.
	var impostor string
	for i := 0; i < 100000; i++ {
		candidate := "impostor-" + string(rune('a'+i%26)) + string(rune('0'+i/26%10))
		if rec.bloom.Contains(candidate) && candidate != "org-A" {
			impostor = candidate
			break
		}
	}

	if impostor != "" {
		results := r.QueryByIssuer(impostor, clearance.TopSecret)
		assert.Empty(t, results, "bloom false positive must not surface a record the issuer has no releasability for")
	}
}

func TestQueryByIssuerDecryptsOrgMetadata(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Register(NewRecordInput{
		DocumentDID:         "doc-meta",
		ClassificationLevel: clearance.Internal,
		ReleasableTo:        []string{"org-A", "org-B"},
		BlobHandle:          BlobHandle{BlobID: "blob-meta"},
	}, map[string]any{"title": "Quarterly Budget", "department": "Logistics"})
	require.NoError(t, err)

	results := r.QueryByIssuer("org-A", clearance.TopSecret)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Metadata)
	assert.Equal(t, "Quarterly Budget", results[0].Metadata["title"])
	assert.Equal(t, "Logistics", results[0].Metadata["department"])

	// org-B has its own independently encrypted envelope, but decrypts to
	// the same plaintext metadata.
	resultsB := r.QueryByIssuer("org-B", clearance.TopSecret)
	require.Len(t, resultsB, 1)
	assert.Equal(t, "Quarterly Budget", resultsB[0].Metadata["title"])

	// A mismatched envelope key must never decrypt: corrupt org-A's
	// wrapping key and confirm the summary comes back without metadata
	// rather than with garbage or a panic.
	rec, ok := r.FindByDocumentID("doc-meta")
	require.True(t, ok)
	env := rec.EncryptedMetadata["org-A"]
	env.WrappingKey = append([]byte(nil), env.WrappingKey...)
	env.WrappingKey[0] ^= 0xFF
	r.mu.Lock()
	r.documents["doc-meta"].EncryptedMetadata["org-A"] = env
	r.mu.Unlock()

	tampered := r.QueryByIssuer("org-A", clearance.TopSecret)
	require.Len(t, tampered, 1)
	assert.Nil(t, tampered[0].Metadata)
}

func TestRevokeAccessRegeneratesBloom(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Register(NewRecordInput{
		DocumentDID:         "doc-4",
		ClassificationLevel: clearance.Internal,
		ReleasableTo:        []string{"org-A", "org-B"},
		BlobHandle:          BlobHandle{BlobID: "blob-4"},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, r.RevokeAccess("doc-4", "org-A"))

	_, err = r.Get("doc-4", "org-A")
	assert.ErrorIs(t, err, ErrUnauthorized)

	rec, _ := r.FindByDocumentID("doc-4")
	assert.False(t, rec.bloom.Contains("org-A") && containsString(rec.ReleasableTo, "org-A"))
	_, stillHasB := rec.EncryptedMetadata["org-B"]
	assert.True(t, stillHasB)
	_, hasA := rec.EncryptedMetadata["org-A"]
	assert.False(t, hasA)
}

func TestPersistenceRoundTrip(t *testing.T) {
	r, path := newTestRegistry(t)

	_, err := r.Register(NewRecordInput{
		DocumentDID:         "doc-5",
		ClassificationLevel: clearance.Restricted,
		ReleasableTo:        []string{"org-A"},
		BlobHandle:          BlobHandle{BlobID: "blob-5"},
	}, map[string]any{"title": "x"})
	require.NoError(t, err)

	r2, err := Open(Config{PersistPath: path, SigningKey: []byte("signing-key")})
	require.NoError(t, err)

	rec, err := r2.Get("doc-5", "org-A")
	require.NoError(t, err)
	assert.Equal(t, clearance.Restricted, rec.ClassificationLevel)
}

func TestCorruptRegistryRefusesToLoad(t *testing.T) {
	r, path := newTestRegistry(t)

	_, err := r.Register(NewRecordInput{
		DocumentDID:         "doc-6",
		ClassificationLevel: clearance.Internal,
		ReleasableTo:        []string{"org-A"},
		BlobHandle:          BlobHandle{BlobID: "blob-6"},
	}, nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	idx := indexOf(raw, []byte(`"signature"`))
	require.GreaterOrEqual(t, idx, 0)
	// flip a byte a few characters into the hex value itself, not the
	// surrounding JSON punctuation
	raw[idx+20] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = Open(Config{PersistPath: path, SigningKey: []byte("signing-key")})
	assert.ErrorIs(t, err, ErrCorruptRegistry)
}
