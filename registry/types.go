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
	"time"

	"github.com/clearancevault/core/clearance"
	"github.com/clearancevault/core/document"
)

// DocumentType distinguishes a plain registered document from one backed
// by an EncryptedPackage.
type DocumentType string

const (
	DocumentStandard  DocumentType = "standard"
	DocumentClassified DocumentType = "classified"
)

// EncryptedMetadataEnvelope is a per-organization AES-256-GCM-wrapped
// metadata blob. The key is retained in the envelope for this phase; §9
// marks wrapping it under the org's own key-agreement key as the
// production upgrade, left here as an explicit extension point.
type EncryptedMetadataEnvelope struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	AuthTag    []byte `json:"authTag"`
	// WrappingKey holds the raw AES key today. In a production deployment
	// this becomes the key wrapped under the recipient organization's
	// published key-agreement key, per §9.
	WrappingKey []byte `json:"wrappingKey"`
}

// BlobHandle locates a document's bytes in the external BlobStore.
type BlobHandle struct {
	BlobID           string `json:"blobId"`
	Filename         string `json:"filename"`
	ContentHash      string `json:"contentHash"`
	ServerEncryption bool   `json:"serverEncryption,omitempty"`
}

// AccessLogEntry is one entry in a record's capped access-log ring buffer.
type AccessLogEntry struct {
	UserID         string    `json:"userId"`
	SectionsViewed []string  `json:"sectionsViewed,omitempty"`
	Timestamp      time.Time `json:"ts"`
}

const accessLogCap = 100

// PerSectionSummary is the non-sensitive per-section facts exposed to a
// discovery query for a classified document.
type PerSectionSummary struct {
	SectionID  string         `json:"sectionId"`
	Clearance  clearance.Tier `json:"clearance"`
	Title      string         `json:"title"`
	TagName    document.TagName `json:"tagName"`
	TextLength int            `json:"textLength"`
}

// SectionMetadataSummary is the §3 sectionMetadata field of a registered
// classified document.
type SectionMetadataSummary struct {
	Count               int                 `json:"count"`
	ClearanceLevelsUsed []clearance.Tier    `json:"clearanceLevelsUsed"`
	PerSection          []PerSectionSummary `json:"perSection"`
}

// Record is the §3 "Registered document record". It is owned exclusively
// by the registry; all access goes through registry-mediated methods.
type Record struct {
	DocumentDID        string                               `json:"documentDID"`
	ClassificationLevel clearance.Tier                       `json:"classificationLevel"`
	ReleasableTo       []string                             `json:"releasableTo"`
	EncryptedMetadata  map[string]EncryptedMetadataEnvelope  `json:"encryptedMetadata"`
	ContentEncryptionKey []byte                              `json:"contentEncryptionKey,omitempty"`
	BlobHandle         BlobHandle                            `json:"blobHandle"`
	SectionMetadata    *SectionMetadataSummary                `json:"sectionMetadata,omitempty"`
	DocumentType       DocumentType                         `json:"documentType"`
	CreatedAt          time.Time                            `json:"createdAt"`
	UpdatedAt          time.Time                            `json:"updatedAt"`
	AccessLog          []AccessLogEntry                     `json:"accessLog"`

	bloom *BloomFilter
}

func (r *Record) appendAccessLog(entry AccessLogEntry) {
	r.AccessLog = append(r.AccessLog, entry)
	if len(r.AccessLog) > accessLogCap {
		r.AccessLog = r.AccessLog[len(r.AccessLog)-accessLogCap:]
	}
}

// NewRecordInput is the caller-supplied data for Register/RegisterClassified.
type NewRecordInput struct {
	DocumentDID          string
	ClassificationLevel  clearance.Tier
	ReleasableTo         []string
	BlobHandle           BlobHandle
	SectionMetadata      *SectionMetadataSummary
	DocumentType         DocumentType
}

// RegisterResult is the §4.3 register/registerClassified return value.
type RegisterResult struct {
	DocumentDID      string
	BloomFilter      *BloomFilter
	ReleasableToCount int
}

// DiscoverableDoc is one entry in a queryByIssuer result: a document
// summary decrypted from its org-specific metadata envelope.
type DiscoverableDoc struct {
	DocumentDID        string          `json:"documentDID"`
	ClassificationLevel clearance.Tier  `json:"classificationLevel"`
	DocumentType       DocumentType    `json:"documentType"`
	BlobHandle         BlobHandle      `json:"blobHandle"`
	CreatedAt          time.Time       `json:"createdAt"`
	ClassifiedSummary  *ClassifiedSummary `json:"classifiedSummary,omitempty"`
	// Metadata is decrypted from the requesting issuerID's own
	// EncryptedMetadataEnvelope; nil if the record holds no envelope for
	// this issuer or the envelope fails to decrypt. An empty metadata map
	// at registration is still sealed, and decrypts to an empty map.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ClassifiedSummary is computed against the requesting holderTier, without
// decrypting any section content.
type ClassifiedSummary struct {
	TotalSections       int              `json:"totalSections"`
	VisibleCount         int              `json:"visibleCount"`
	RedactedCount         int              `json:"redactedCount"`
	ClearanceLevelsUsed []clearance.Tier `json:"clearanceLevelsUsed"`
}
