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

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerifySelfProofRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	did := "did:cv:abc123"
	doc := &Document{
		ID: did,
		PublicKey: []VerificationMethod{
			{
				ID:              did + "#key-1",
				Type:            Ed25519VerificationKey2018Type,
				Controller:      did,
				PublicKeyBase58: base58.Encode(pub),
			},
		},
		Authentication: []string{did + "#key-1"},
	}

	proof, err := Sign(doc, did, priv)
	require.NoError(t, err)
	doc.Proof = proof

	ok, err := VerifySelfProof(doc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySelfProofDetectsTamper(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	did := "did:cv:def456"
	doc := &Document{
		ID: did,
		PublicKey: []VerificationMethod{
			{
				ID:              did + "#key-1",
				Type:            Ed25519VerificationKey2018Type,
				Controller:      did,
				PublicKeyBase58: base58.Encode(pub),
			},
		},
		Authentication: []string{did + "#key-1"},
	}

	proof, err := Sign(doc, did, priv)
	require.NoError(t, err)
	doc.Proof = proof

	doc.Authentication = []string{did + "#key-1", did + "#key-2"}

	ok, err := VerifySelfProof(doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthenticationKeyMissing(t *testing.T) {
	doc := &Document{ID: "did:cv:noauth"}
	_, ok := doc.AuthenticationKey()
	assert.False(t, ok)
}
