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

package document

import (
	"crypto/subtle"
	"encoding/base64"

	"github.com/clearancevault/core/clearance"
)

// RedactionReason names why a section was withheld from DecryptResult.
type RedactionReason string

const (
	RedactionNotDominated     RedactionReason = "NotDominated"
	RedactionDecryptionFailed RedactionReason = "DecryptionFailed"
)

// RedactedSection is a section that was withheld from a DecryptResult.
type RedactedSection struct {
	SectionMetadata
	Reason RedactionReason `json:"reason"`
}

// DecryptResult is the output of DecryptForHolder.
type DecryptResult struct {
	Decrypted []Section
	Redacted  []RedactedSection
}

// dominatesConstantTime compares two tiers without branching on the
// comparison outside of the single dominance predicate itself, per §4.2's
// constant-time requirement.
func dominatesConstantTime(holder, section clearance.Tier) bool {
	return subtle.ConstantTimeLessOrEq(int(section), int(holder)) == 1
}

// DecryptForHolder implements §4.2 decryptForHolder: every section the
// holder's tier dominates is decrypted; everything else, or anything that
// fails to decrypt, is reported in Redacted — never silently dropped.
func DecryptForHolder(pkg *EncryptedPackage, holderTier clearance.Tier, companySecret []byte) (*DecryptResult, error) {
	// A tampered or corrupt package is not rejected outright here: each
	// section is still attempted independently, so a single damaged
	// section is reported as DecryptionFailed rather than hiding the
	// whole package. Callers that want an early integrity gate call
	// VerifyIntegrity explicitly before this.
	result := &DecryptResult{}

	masterKeys := make(map[clearance.Tier][]byte)
	for _, tier := range clearance.All() {
		if !dominatesConstantTime(holderTier, tier) {
			continue
		}
		key, err := deriveMasterKey(companySecret, pkg.Metadata.Title, tier)
		if err != nil {
			continue
		}
		masterKeys[tier] = key
	}

	for _, es := range pkg.EncryptedSections {
		meta := SectionMetadata{
			SectionID:  es.SectionID,
			Clearance:  es.Clearance,
			Title:      es.Title,
			TagName:    es.TagName,
			TextLength: es.TextLength,
		}

		if !dominatesConstantTime(holderTier, es.Clearance) {
			result.Redacted = append(result.Redacted, RedactedSection{
				SectionMetadata: meta,
				Reason:          RedactionNotDominated,
			})
			continue
		}

		wrapped, ok := pkg.SectionKeys[es.SectionID]
		masterKey, hasMaster := masterKeys[es.Clearance]
		if !ok || !hasMaster {
			result.Redacted = append(result.Redacted, RedactedSection{
				SectionMetadata: meta,
				Reason:          RedactionDecryptionFailed,
			})
			continue
		}

		sectionKey, err := unwrapSectionKey(wrapped.EncryptedKey, masterKey)
		if err != nil {
			result.Redacted = append(result.Redacted, RedactedSection{
				SectionMetadata: meta,
				Reason:          RedactionDecryptionFailed,
			})
			continue
		}

		plaintext, err := decryptAESGCM(es.Ciphertext, es.IV, es.AuthTag, sectionKey)
		if err != nil {
			result.Redacted = append(result.Redacted, RedactedSection{
				SectionMetadata: meta,
				Reason:          RedactionDecryptionFailed,
			})
			continue
		}

		result.Decrypted = append(result.Decrypted, Section{
			SectionID:   es.SectionID,
			Clearance:   es.Clearance,
			Title:       es.Title,
			TagName:     es.TagName,
			TextLength:  es.TextLength,
			ContentHash: es.ContentHash,
			Content:     plaintext,
		})
	}

	return result, nil
}

// KeyringFor renders the base64-encoded master-key bundle for the given
// holder tier, as stored in EncryptedPackage.Keyring.
func KeyringFor(pkg *EncryptedPackage, holderTier clearance.Tier) Keyring {
	return pkg.Keyring[holderTier]
}

func decodeKeyringKey(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
