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

// Package identity models the external identity platform as a black box:
// the IdentityAgent interface (credential-offer, connection, publication
// and revocation-list endpoints) and the DID document shapes the core
// needs to verify a requester's authentication key. DID publication,
// DIDComm transport, credential issuance and schema registry machinery
// are explicitly out of scope — implemented here only as call shapes a
// caller can mock or wire to a real agent.
package identity

import (
	"crypto/ed25519"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const Ed25519VerificationKey2018Type = "Ed25519VerificationKey2018"

// VerificationMethod is a DID document's published authentication key.
type VerificationMethod struct {
	Context         any    `json:"@context,omitempty"`
	ID              string `json:"id"`
	Type            string `json:"type"`
	Controller      string `json:"controller"`
	PublicKeyBase58 string `json:"publicKeyBase58"`
}

// PublicKey decodes the base58 verification key.
func (vm VerificationMethod) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(base58.Decode(vm.PublicKeyBase58))
}

// Proof is a self-signature over a DID document, following the same
// JSON-LD signature shape the core's own documents use.
type Proof struct {
	Type    string `json:"type"`
	Creator string `json:"creator"`
	Value   string `json:"proofValue"`
}

// Document is a minimal W3C DID document: enough to extract the
// requester's authentication key and verify the document's own proof.
type Document struct {
	Context        any                   `json:"@context,omitempty"`
	ID             string                `json:"id"`
	PublicKey      []VerificationMethod  `json:"publicKey,omitempty"`
	Authentication []string              `json:"authentication,omitempty"`
	Created        *time.Time            `json:"created,omitempty"`
	Updated        *time.Time            `json:"updated,omitempty"`
	Proof          *Proof                `json:"proof,omitempty"`
}

// AuthenticationKey returns the public key of the document's first
// authentication entry, resolving it against PublicKey if Authentication
// references a key ID rather than embedding the key inline.
func (d *Document) AuthenticationKey() (ed25519.PublicKey, bool) {
	if len(d.Authentication) == 0 {
		return nil, false
	}
	keyID := d.Authentication[0]
	for _, vm := range d.PublicKey {
		if vm.ID == keyID || vm.ID == d.ID+keyID {
			return vm.PublicKey(), true
		}
	}
	return nil, false
}
