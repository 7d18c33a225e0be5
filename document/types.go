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

// Package document implements the clearance-aware section parser and
// encryptor: turning classified HTML/DOCX source into a ParsedDocument,
// and a ParsedDocument into an EncryptedPackage that only holders of the
// right clearance tier can unwrap.
package document

import (
	"time"

	"github.com/clearancevault/core/clearance"
)

// TagName classifies where a section came from in its source markup.
type TagName string

const (
	TagBlock   TagName = "block"
	TagInline  TagName = "inline"
	TagSection TagName = "section"
)

// Section is the atomic unit of classified content, tagged with exactly
// one clearance tier. Content holds the plaintext; encryption leaves it
// unchanged and puts the ciphertext in the EncryptedPackage's sections.
type Section struct {
	SectionID   string       `json:"sectionId"`
	Clearance   clearance.Tier `json:"clearance"`
	Title       string       `json:"title"`
	TagName     TagName      `json:"tagName"`
	TextLength  int          `json:"textLength"`
	ContentHash string       `json:"contentHash"`
	Content     []byte       `json:"content"`
}

// SourceFormat names the ingest format a ParsedDocument was produced from.
type SourceFormat string

const (
	SourceHTML SourceFormat = "html"
	SourceDocx SourceFormat = "docx"
)

// Metadata carries the document-level facts a parser extracts, plus the
// derived overallClassification and sectionCount.
type Metadata struct {
	Title                 string         `json:"title"`
	DocType               string         `json:"docType"`
	Author                string         `json:"author,omitempty"`
	CreatedDate           string         `json:"createdDate,omitempty"`
	Department            string         `json:"department,omitempty"`
	OverallClassification clearance.Tier `json:"overallClassification"`
	SectionCount           int            `json:"sectionCount"`
	SourceFormat          SourceFormat   `json:"sourceFormat"`
}

// ParsedDocument is the output of §4.1: an ordered list of sections owned
// exclusively by this document, plus derived metadata.
type ParsedDocument struct {
	Metadata Metadata  `json:"metadata"`
	Sections []Section `json:"sections"`
}

// Recompute fills Metadata.OverallClassification (the maximum section
// clearance) and Metadata.SectionCount. It must be called after any
// mutation of Sections so the invariant in §3 ("overallClassification is
// the maximum section clearance") always holds.
func (d *ParsedDocument) Recompute() {
	tiers := make([]clearance.Tier, 0, len(d.Sections))
	for _, s := range d.Sections {
		tiers = append(tiers, s.Clearance)
	}
	d.Metadata.OverallClassification = clearance.Max(tiers...)
	if d.Metadata.OverallClassification == clearance.Unknown {
		// An empty document (no tagged content) is INTERNAL by default,
		// per the boundary case in the spec's testable properties.
		d.Metadata.OverallClassification = clearance.Internal
	}
	d.Metadata.SectionCount = len(d.Sections)
}

// ClearanceLevelStats counts sections per tier.
func (d *ParsedDocument) ClearanceLevelStats() map[clearance.Tier]int {
	stats := make(map[clearance.Tier]int)
	for _, s := range d.Sections {
		stats[s.Clearance]++
	}
	return stats
}

// EncryptedSection is a Section whose Content has been replaced by its
// AES-256-GCM ciphertext and auth tag, alongside the plaintext metadata
// that the registry and discovery path need without decrypting anything.
type EncryptedSection struct {
	SectionID   string         `json:"sectionId"`
	Clearance   clearance.Tier `json:"clearance"`
	TagName     TagName        `json:"tagName"`
	Title       string         `json:"title"`
	TextLength  int            `json:"textLength"`
	ContentHash string         `json:"contentHash"`
	Ciphertext  []byte         `json:"ciphertext"`
	IV          []byte         `json:"iv"`
	AuthTag     []byte         `json:"authTag"`
	EncryptedAt time.Time      `json:"encryptedAt"`
}

// WrappedSectionKey is a per-section AES key, wrapped under its tier's
// master key.
type WrappedSectionKey struct {
	Clearance   clearance.Tier `json:"clearance"`
	EncryptedKey []byte        `json:"encryptedKey"`
}

// Keyring is the per-tier bundle of master keys (base64-encoded) that a
// holder at that tier is entitled to possess: exactly the tiers it
// dominates.
type Keyring struct {
	Keys map[clearance.Tier]string `json:"keys"`
}

// EncryptedMetadata mirrors Metadata plus the three fields added at
// encryption time.
type EncryptedMetadata struct {
	Metadata
	EncryptedAt       time.Time `json:"encryptedAt"`
	Algorithm         string    `json:"algorithm"`
	EncryptionVersion int       `json:"encryptionVersion"`
}

// EncryptedPackage is the §4.2 output: an encrypted, integrity-sealed
// rendition of a ParsedDocument that only a holder of the right clearance
// tier (and the company secret) can partially decrypt.
type EncryptedPackage struct {
	DocumentID        string                        `json:"documentId"`
	Metadata          EncryptedMetadata              `json:"metadata"`
	EncryptedSections []EncryptedSection             `json:"encryptedSections"`
	SectionKeys       map[string]WrappedSectionKey    `json:"sectionKeys"`
	Keyring           map[clearance.Tier]Keyring      `json:"keyring"`
	IntegrityHash     string                          `json:"integrityHash"`
}

// SectionMetadata is the record stored in the registry for a classified
// document: everything a discovery query needs, without any ciphertext or
// keys.
type SectionMetadata struct {
	SectionID  string         `json:"sectionId"`
	Clearance  clearance.Tier `json:"clearance"`
	Title      string         `json:"title"`
	TagName    TagName        `json:"tagName"`
	TextLength int            `json:"textLength"`
}

const (
	Algorithm         = "AES-256-GCM"
	EncryptionVersion = 1
)
