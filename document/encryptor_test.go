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
	"testing"

	"github.com/clearancevault/core/clearance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleParsedDocument() *ParsedDocument {
	doc := &ParsedDocument{
		Metadata: Metadata{Title: "Test Doc", SourceFormat: SourceHTML},
		Sections: []Section{
			{SectionID: "sec-001", Clearance: clearance.Internal, TagName: TagBlock, Content: []byte("public info"), TextLength: 11},
			{SectionID: "sec-002", Clearance: clearance.Confidential, TagName: TagBlock, Content: []byte("budget numbers"), TextLength: 14},
			{SectionID: "sec-003", Clearance: clearance.TopSecret, TagName: TagInline, Content: []byte("codeword"), TextLength: 8},
		},
	}
	doc.Recompute()
	return doc
}

func TestEncryptDecryptRoundTripHighestTier(t *testing.T) {
	secret := []byte("company-secret")
	doc := sampleParsedDocument()

	pkg, err := Encrypt(doc, "doc-1", secret)
	require.NoError(t, err)
	assert.True(t, VerifyIntegrity(pkg))

	result, err := DecryptForHolder(pkg, clearance.TopSecret, secret)
	require.NoError(t, err)
	assert.Len(t, result.Decrypted, 3)
	assert.Empty(t, result.Redacted)

	for i, s := range result.Decrypted {
		assert.Equal(t, doc.Sections[i].Content, s.Content)
	}
}

func TestDecryptRedactsSectionsAboveHolderTier(t *testing.T) {
	secret := []byte("company-secret")
	doc := sampleParsedDocument()

	pkg, err := Encrypt(doc, "doc-1", secret)
	require.NoError(t, err)

	result, err := DecryptForHolder(pkg, clearance.Confidential, secret)
	require.NoError(t, err)
	assert.Len(t, result.Decrypted, 2)
	require.Len(t, result.Redacted, 1)
	assert.Equal(t, "sec-003", result.Redacted[0].SectionID)
	assert.Equal(t, RedactionNotDominated, result.Redacted[0].Reason)
}

func TestDecryptTamperedCiphertextIsRedacted(t *testing.T) {
	secret := []byte("company-secret")
	doc := sampleParsedDocument()

	pkg, err := Encrypt(doc, "doc-1", secret)
	require.NoError(t, err)

	pkg.EncryptedSections[0].Ciphertext[0] ^= 0xFF

	assert.False(t, VerifyIntegrity(pkg))

	result, err := DecryptForHolder(pkg, clearance.TopSecret, secret)
	require.NoError(t, err)
	require.Len(t, result.Redacted, 1)
	assert.Equal(t, "sec-001", result.Redacted[0].SectionID)
	assert.Equal(t, RedactionDecryptionFailed, result.Redacted[0].Reason)
	assert.Len(t, result.Decrypted, 2)
}

func TestKeyringContainsExactlyDominatedTiers(t *testing.T) {
	secret := []byte("company-secret")
	doc := sampleParsedDocument()

	pkg, err := Encrypt(doc, "doc-1", secret)
	require.NoError(t, err)

	kr := KeyringFor(pkg, clearance.Restricted)
	assert.Len(t, kr.Keys, 3)
	_, hasTopSecret := kr.Keys[clearance.TopSecret]
	assert.False(t, hasTopSecret)
}
