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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/clearancevault/core/clearance"
	"github.com/clearancevault/core/utils/jsonw"
	"github.com/clearancevault/core/utils/measure"
	"github.com/rs/zerolog/log"
)

// Registry is the §4.3 in-memory authoritative index of registered
// documents, persisted atomically for crash recovery. A single writer
// lock on the document map, combined with copy-on-write for the
// per-record fields that change, gives readers either the prior or the
// new state but never an intermediate one (§5).
type Registry struct {
	mu        sync.RWMutex
	documents map[string]*Record

	persistPath string
	signingKey  []byte
}

// Config carries the registry's persistence path and HMAC signing key.
// Per §9's call to consolidate ambient configuration, both are supplied
// explicitly by the caller rather than read from the environment here.
type Config struct {
	PersistPath string
	SigningKey  []byte
}

// Open constructs a Registry, loading and signature-verifying any
// existing snapshot at cfg.PersistPath. A signature mismatch is reported
// as ErrCorruptRegistry and the registry does not start.
func Open(cfg Config) (*Registry, error) {
	documents := map[string]*Record{}
	if cfg.PersistPath != "" {
		loaded, err := load(cfg.PersistPath, cfg.SigningKey)
		if err != nil {
			return nil, err
		}
		documents = loaded
	}
	return &Registry{
		documents:   documents,
		persistPath: cfg.PersistPath,
		signingKey:  cfg.SigningKey,
	}, nil
}

// Register implements §4.3 register: validates required fields,
// regenerates the Bloom filter, encrypts metadata for each authorized
// organization, stores the record, and persists the whole snapshot.
func (r *Registry) Register(input NewRecordInput, metadata map[string]any) (*RegisterResult, error) {
	defer measure.ExecTime("registry.Register")()
	return r.registerInternal(input, metadata, DocumentStandard)
}

// RegisterClassified implements §4.3 registerClassified: the same
// contract as Register, with section metadata recorded and
// documentType=classified. classificationLevel is the package's overall
// (maximum) tier.
func (r *Registry) RegisterClassified(input NewRecordInput, metadata map[string]any) (*RegisterResult, error) {
	defer measure.ExecTime("registry.RegisterClassified")()
	input.DocumentType = DocumentClassified
	return r.registerInternal(input, metadata, DocumentClassified)
}

func (r *Registry) registerInternal(input NewRecordInput, metadata map[string]any, docType DocumentType) (*RegisterResult, error) {
	if input.DocumentDID == "" || input.BlobHandle.BlobID == "" {
		return nil, ErrMissingRequiredField
	}
	if !input.ClassificationLevel.Valid() {
		return nil, ErrInvalidTier
	}

	bloom := NewBloomFilter()
	bloom.Rebuild(input.ReleasableTo)

	envelopes, err := encryptMetadataForOrgs(input.ReleasableTo, metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &Record{
		DocumentDID:         input.DocumentDID,
		ClassificationLevel: input.ClassificationLevel,
		ReleasableTo:        append([]string{}, input.ReleasableTo...),
		EncryptedMetadata:   envelopes,
		BlobHandle:          input.BlobHandle,
		SectionMetadata:     input.SectionMetadata,
		DocumentType:        docType,
		CreatedAt:           now,
		UpdatedAt:           now,
		bloom:               bloom,
	}

	r.mu.Lock()
	r.documents[rec.DocumentDID] = rec
	r.mu.Unlock()

	r.save()

	return &RegisterResult{
		DocumentDID:       rec.DocumentDID,
		BloomFilter:       bloom,
		ReleasableToCount: len(rec.ReleasableTo),
	}, nil
}

// QueryByIssuer implements §4.3 queryByIssuer. Bloom false positives must
// never produce a positive answer: the releasableTo membership check is
// authoritative and always re-checked even when the Bloom filter says
// "maybe".
func (r *Registry) QueryByIssuer(issuerID string, holderTier clearance.Tier) []DiscoverableDoc {
	defer measure.ExecTime("registry.QueryByIssuer")()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []DiscoverableDoc
	for _, rec := range r.documents {
		if !rec.bloom.Contains(issuerID) {
			continue
		}
		if !containsString(rec.ReleasableTo, issuerID) {
			continue
		}
		if !holderTier.Dominates(rec.ClassificationLevel) {
			continue
		}

		doc := DiscoverableDoc{
			DocumentDID:         rec.DocumentDID,
			ClassificationLevel: rec.ClassificationLevel,
			DocumentType:        rec.DocumentType,
			BlobHandle:          rec.BlobHandle,
			CreatedAt:           rec.CreatedAt,
		}

		if rec.DocumentType == DocumentClassified && rec.SectionMetadata != nil {
			doc.ClassifiedSummary = summarizeForHolder(rec.SectionMetadata, holderTier)
		}

		if env, ok := rec.EncryptedMetadata[issuerID]; ok {
			metadata, err := decryptMetadataEnvelope(env)
			if err != nil {
				log.Warn().Err(err).Str("documentDID", rec.DocumentDID).Str("issuerId", issuerID).
					Msg("registry: failed to decrypt org metadata envelope, omitting from summary")
			} else {
				doc.Metadata = metadata
			}
		}

		results = append(results, doc)
	}
	return results
}

func summarizeForHolder(sm *SectionMetadataSummary, holderTier clearance.Tier) *ClassifiedSummary {
	visible, redacted := 0, 0
	for _, s := range sm.PerSection {
		if holderTier.Dominates(s.Clearance) {
			visible++
		} else {
			redacted++
		}
	}
	return &ClassifiedSummary{
		TotalSections:       sm.Count,
		VisibleCount:        visible,
		RedactedCount:       redacted,
		ClearanceLevelsUsed: sm.ClearanceLevelsUsed,
	}
}

// Get implements §4.3 get: fetch by id, failing with ErrUnauthorized if
// requesterID is not in releasableTo.
func (r *Registry) Get(documentDID, requesterID string) (*Record, error) {
	r.mu.RLock()
	rec, ok := r.documents[documentDID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !containsString(rec.ReleasableTo, requesterID) {
		return nil, ErrUnauthorized
	}
	clone := *rec
	return &clone, nil
}

// GetClassified implements §4.3 getClassified: the same authorization
// gate as Get. holderTier is accepted for parity with the spec's
// signature; callers that need a clearance-filtered summary should use
// QueryByIssuer or filter the returned SectionMetadata themselves.
func (r *Registry) GetClassified(documentDID, requesterID string, holderTier clearance.Tier) (*Record, error) {
	return r.Get(documentDID, requesterID)
}

// RevokeAccess implements §4.3 revokeAccess: remove orgID from
// releasableTo and encryptedMetadata, regenerate the Bloom filter, bump
// updatedAt, and persist.
func (r *Registry) RevokeAccess(documentDID, orgID string) error {
	r.mu.Lock()
	rec, ok := r.documents[documentDID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}

	updated := *rec
	updated.ReleasableTo = removeString(rec.ReleasableTo, orgID)
	updated.EncryptedMetadata = cloneEnvelopeMapWithout(rec.EncryptedMetadata, orgID)
	bloom := NewBloomFilter()
	bloom.Rebuild(updated.ReleasableTo)
	updated.bloom = bloom
	updated.UpdatedAt = time.Now().UTC()

	r.documents[documentDID] = &updated
	r.mu.Unlock()

	r.save()
	return nil
}

// FindByBlobID implements §4.3 findByBlobId: a linear scan helper used
// when the caller holds only a storage handle.
func (r *Registry) FindByBlobID(blobID string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.documents {
		if rec.BlobHandle.BlobID == blobID {
			clone := *rec
			return &clone, true
		}
	}
	return nil, false
}

// FindByDocumentID implements §4.3 findByDocumentId.
func (r *Registry) FindByDocumentID(documentID string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.documents[documentID]
	if !ok {
		return nil, false
	}
	clone := *rec
	return &clone, true
}

// RecordSectionAccess implements §4.3 recordSectionAccess: append to the
// capped access log ring buffer and persist.
func (r *Registry) RecordSectionAccess(documentDID, userID string, sectionIDs []string) error {
	r.mu.Lock()
	rec, ok := r.documents[documentDID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	updated := *rec
	updated.AccessLog = append([]AccessLogEntry{}, rec.AccessLog...)
	updated.appendAccessLog(AccessLogEntry{
		UserID:         userID,
		SectionsViewed: sectionIDs,
		Timestamp:      time.Now().UTC(),
	})
	r.documents[documentDID] = &updated
	r.mu.Unlock()

	r.save()
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func cloneEnvelopeMapWithout(m map[string]EncryptedMetadataEnvelope, without string) map[string]EncryptedMetadataEnvelope {
	out := make(map[string]EncryptedMetadataEnvelope, len(m))
	for k, v := range m {
		if k == without {
			continue
		}
		out[k] = v
	}
	return out
}

// encryptMetadataForOrgs encrypts metadata once per organization with a
// fresh AES-256-GCM key, per §4.3. See §9: in this phase the key is
// retained in the envelope; a production design wraps it under the org's
// own key-agreement key.
func encryptMetadataForOrgs(orgIDs []string, metadata map[string]any) (map[string]EncryptedMetadataEnvelope, error) {
	envelopes := make(map[string]EncryptedMetadataEnvelope, len(orgIDs))
	if len(orgIDs) == 0 {
		return envelopes, nil
	}

	plaintext, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}

	for _, org := range orgIDs {
		key := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, err
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		iv := make([]byte, gcm.NonceSize())
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return nil, err
		}
		sealed := gcm.Seal(nil, iv, plaintext, nil)
		tagStart := len(sealed) - gcm.Overhead()

		envelopes[org] = EncryptedMetadataEnvelope{
			Ciphertext:  sealed[:tagStart],
			IV:          iv,
			AuthTag:     sealed[tagStart:],
			WrappingKey: key,
		}
	}
	return envelopes, nil
}

// decryptMetadataEnvelope reverses encryptMetadataForOrgs for a single
// organization's envelope: AES-256-GCM open using the envelope's own
// retained key, then unmarshal the plaintext into the §4.3 metadata map.
func decryptMetadataEnvelope(env EncryptedMetadataEnvelope) (map[string]any, error) {
	block, err := aes.NewCipher(env.WrappingKey)
	if err != nil {
		return nil, fmt.Errorf("registry: constructing cipher for metadata envelope: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("registry: constructing GCM for metadata envelope: %w", err)
	}

	sealed := append(append([]byte{}, env.Ciphertext...), env.AuthTag...)
	plaintext, err := gcm.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: opening metadata envelope: %w", err)
	}

	var metadata map[string]any
	if err := jsonw.Unmarshal(plaintext, &metadata); err != nil {
		return nil, fmt.Errorf("registry: unmarshaling decrypted metadata: %w", err)
	}
	return metadata, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return jsonw.Marshal(metadata)
}
