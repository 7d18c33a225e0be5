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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/clearancevault/core/clearance"
	"github.com/clearancevault/core/utils/zero"
	"golang.org/x/crypto/hkdf"
)

const masterKeyInfoPrefix = "clearance-master-key-"

// deriveMasterKey implements the §4.2 key derivation: a 32-byte HKDF-SHA-256
// key with IKM=companySecret, salt=SHA-256(documentTitle or "document"),
// info="clearance-master-key-"+tier. It is deterministic per
// (secret, title, tier) and is never persisted.
func deriveMasterKey(companySecret []byte, documentTitle string, tier clearance.Tier) ([]byte, error) {
	if documentTitle == "" {
		documentTitle = "document"
	}
	salt := sha256.Sum256([]byte(documentTitle))
	info := []byte(masterKeyInfoPrefix + tier.String())

	reader := hkdf.New(sha256.New, companySecret, salt[:], info)
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("deriving master key for tier %s: %w", tier, err)
	}
	return key, nil
}

func encryptAESGCM(plaintext, key []byte) (ciphertext, iv, authTag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, err
	}
	iv = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, nil, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagStart := len(sealed) - gcm.Overhead()
	return sealed[:tagStart], iv, sealed[tagStart:], nil
}

func decryptAESGCM(ciphertext, iv, authTag, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	sealed := append(append([]byte{}, ciphertext...), authTag...)
	return gcm.Open(nil, iv, sealed, nil)
}

// Encrypt implements §4.2: produce an EncryptedPackage from a
// ParsedDocument and a companySecret.
func Encrypt(doc *ParsedDocument, documentID string, companySecret []byte) (*EncryptedPackage, error) {
	now := time.Now().UTC()

	masterKeys := make(map[clearance.Tier][]byte, len(clearance.All()))
	for _, tier := range clearance.All() {
		key, err := deriveMasterKey(companySecret, doc.Metadata.Title, tier)
		if err != nil {
			return nil, &CryptoError{Kind: UnsupportedAlgorithm, Cause: err}
		}
		masterKeys[tier] = key
	}
	defer func() {
		for _, k := range masterKeys {
			zero.Bytes(k)
		}
	}()

	encSections := make([]EncryptedSection, 0, len(doc.Sections))
	sectionKeys := make(map[string]WrappedSectionKey, len(doc.Sections))

	for _, s := range doc.Sections {
		sectionKey := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, sectionKey); err != nil {
			return nil, &CryptoError{Kind: UnsupportedAlgorithm, Cause: err}
		}

		ciphertext, iv, authTag, err := encryptAESGCM(s.Content, sectionKey)
		if err != nil {
			zero.Bytes(sectionKey)
			return nil, &CryptoError{Kind: UnsupportedAlgorithm, Cause: err}
		}

		masterKey, ok := masterKeys[s.Clearance]
		if !ok {
			zero.Bytes(sectionKey)
			return nil, &CryptoError{Kind: UnsupportedAlgorithm, Cause: fmt.Errorf("no master key for tier %s", s.Clearance)}
		}

		wrapCiphertext, wrapIV, wrapTag, err := encryptAESGCM(sectionKey, masterKey)
		zero.Bytes(sectionKey)
		if err != nil {
			return nil, &CryptoError{Kind: UnsupportedAlgorithm, Cause: err}
		}
		wrapped := append(append(append([]byte{}, wrapIV...), wrapTag...), wrapCiphertext...)

		encSections = append(encSections, EncryptedSection{
			SectionID:   s.SectionID,
			Clearance:   s.Clearance,
			TagName:     s.TagName,
			Title:       s.Title,
			TextLength:  s.TextLength,
			ContentHash: s.ContentHash,
			Ciphertext:  ciphertext,
			IV:          iv,
			AuthTag:     authTag,
			EncryptedAt: now,
		})
		sectionKeys[s.SectionID] = WrappedSectionKey{
			Clearance:    s.Clearance,
			EncryptedKey: wrapped,
		}
	}

	keyring := make(map[clearance.Tier]Keyring, len(clearance.All()))
	for _, holderTier := range clearance.All() {
		keys := make(map[clearance.Tier]string)
		for _, tier := range clearance.All() {
			if holderTier.Dominates(tier) {
				keys[tier] = base64.StdEncoding.EncodeToString(masterKeys[tier])
			}
		}
		keyring[holderTier] = Keyring{Keys: keys}
	}

	integrityHash := computeIntegrityHash(encSections)

	pkg := &EncryptedPackage{
		DocumentID: documentID,
		Metadata: EncryptedMetadata{
			Metadata:          doc.Metadata,
			EncryptedAt:       now,
			Algorithm:         Algorithm,
			EncryptionVersion: EncryptionVersion,
		},
		EncryptedSections: encSections,
		SectionKeys:       sectionKeys,
		Keyring:           keyring,
		IntegrityHash:     integrityHash,
	}
	return pkg, nil
}

// computeIntegrityHash is SHA-256 over the ordered concatenation of
// (sectionId ‖ ciphertext ‖ authTag) across every encrypted section, in
// EncryptedSections order.
func computeIntegrityHash(sections []EncryptedSection) string {
	h := sha256.New()
	for _, s := range sections {
		h.Write([]byte(s.SectionID))
		h.Write(s.Ciphertext)
		h.Write(s.AuthTag)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyIntegrity recomputes the package's integrity hash and compares it
// against the stored value.
func VerifyIntegrity(pkg *EncryptedPackage) bool {
	return computeIntegrityHash(pkg.EncryptedSections) == pkg.IntegrityHash
}

var errUnwrapFailed = errors.New("section key unwrap failed")

func unwrapSectionKey(wrapped []byte, masterKey []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(wrapped) < nonceSize+gcm.Overhead() {
		return nil, errUnwrapFailed
	}
	iv := wrapped[:nonceSize]
	tag := wrapped[nonceSize : nonceSize+gcm.Overhead()]
	ciphertext := wrapped[nonceSize+gcm.Overhead():]
	sealed := append(append([]byte{}, ciphertext...), tag...)
	return gcm.Open(nil, iv, sealed, nil)
}
