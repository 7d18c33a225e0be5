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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clearancevault/core/utils/jsonw"
	"github.com/rs/zerolog/log"
)

const snapshotVersion = 1

// persistedRecord is the JSON-on-disk shape of a Record: identical except
// the Bloom filter, which is not exported on Record, is carried as its
// base64 form.
type persistedRecord struct {
	Record
	Bloom string `json:"bloomFilter"`
}

type persistedSnapshot struct {
	Version       int               `json:"version"`
	SavedAt       time.Time         `json:"savedAt"`
	DocumentCount int               `json:"documentCount"`
	Documents     []persistedRecord `json:"documents"`
}

type signedSnapshot struct {
	RegistryState json.RawMessage `json:"registryState"`
	Signature     string          `json:"signature"`
	SignedAt      time.Time       `json:"signedAt"`
}

// save serializes the registry's current state and writes it atomically
// (write-temp-then-rename), HMAC-SHA-256-signed with signingKey. A write
// failure is logged and not propagated: the in-memory state remains
// authoritative until the next successful persist, per §7.
func (r *Registry) save() {
	if r.persistPath == "" {
		return
	}

	r.mu.RLock()
	snap := persistedSnapshot{
		Version:       snapshotVersion,
		SavedAt:       time.Now().UTC(),
		DocumentCount: len(r.documents),
	}
	for _, rec := range r.documents {
		snap.Documents = append(snap.Documents, persistedRecord{
			Record: *rec,
			Bloom:  rec.bloom.Base64(),
		})
	}
	r.mu.RUnlock()

	stateBytes, err := jsonw.Marshal(snap)
	if err != nil {
		log.Err(err).Msg("registry: failed to marshal snapshot, skipping persist")
		return
	}

	mac := hmac.New(sha256.New, r.signingKey)
	mac.Write(stateBytes)
	signature := hex.EncodeToString(mac.Sum(nil))

	wrapped := signedSnapshot{
		RegistryState: stateBytes,
		Signature:     signature,
		SignedAt:      time.Now().UTC(),
	}

	out, err := jsonw.MarshalIndent(wrapped, "", "  ")
	if err != nil {
		log.Err(err).Msg("registry: failed to marshal signed snapshot, skipping persist")
		return
	}

	if err := atomicWriteFile(r.persistPath, out); err != nil {
		log.Err(err).Str("path", r.persistPath).Msg("registry: failed to persist snapshot")
	}
}

// atomicWriteFile writes data to a temp file in the same directory as
// path, then renames it into place, so readers never observe partial
// state.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// load reads and verifies a previously persisted snapshot. Any signature
// mismatch is treated as ErrCorruptRegistry: the process must refuse to
// load rather than silently start with tampered state.
func load(path string, signingKey []byte) (map[string]*Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Record{}, nil
		}
		return nil, fmt.Errorf("registry: reading snapshot: %w", err)
	}

	var wrapped signedSnapshot
	if err := jsonw.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("registry: unmarshaling signed snapshot: %w", err)
	}

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(wrapped.RegistryState)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(wrapped.Signature)
	if err != nil || !hmac.Equal(expected, got) {
		return nil, ErrCorruptRegistry
	}

	var snap persistedSnapshot
	if err := jsonw.Unmarshal(wrapped.RegistryState, &snap); err != nil {
		return nil, fmt.Errorf("registry: unmarshaling snapshot state: %w", err)
	}

	documents := make(map[string]*Record, len(snap.Documents))
	for _, pr := range snap.Documents {
		rec := pr.Record
		bloom, err := FromBase64(pr.Bloom)
		if err != nil {
			log.Warn().Str("documentDID", rec.DocumentDID).Err(err).Msg("registry: skipping record with corrupt bloom filter")
			continue
		}
		rec.bloom = bloom
		documents[rec.DocumentDID] = &rec
	}
	return documents, nil
}
