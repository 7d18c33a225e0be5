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

import "context"

// CredentialStatus mirrors the status endpoint of a verifiable credential:
// revoked credentials still resolve (so a caller can show a reason) but
// must never be treated as valid.
type CredentialStatus struct {
	CredentialID string `json:"credentialId"`
	Revoked      bool   `json:"revoked"`
	RevokedAt    string `json:"revokedAt,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// StatusListEntry points a credential at the bit it occupies in a published
// StatusList2021 credential, per the revocation package's bitstring lookup.
type StatusListEntry struct {
	StatusListCredential string `json:"statusListCredential"`
	StatusListIndex      int    `json:"statusListIndex"`
}

// Connection is an established DIDComm-style pairing between two agents.
type Connection struct {
	ConnectionID string `json:"connectionId"`
	TheirDID     string `json:"theirDid"`
	State        string `json:"state"`
}

// Agent is the identity platform surface the core consumes but does not
// implement: DID publication/resolution, connection establishment and
// credential-offer/status lookups. A production deployment wires this to
// an external IdentityAgent service; tests wire it to a stub.
type Agent interface {
	CreateConnection(ctx context.Context, invitationURL string) (*Connection, error)
	AcceptInvitation(ctx context.Context, invitation []byte) (*Connection, error)
	GetConnection(ctx context.Context, connectionID string) (*Connection, error)

	CreateDID(ctx context.Context, method string) (*Document, error)
	PublishDID(ctx context.Context, doc *Document) error
	GetDIDStatus(ctx context.Context, did string) (*Document, error)

	OfferCredential(ctx context.Context, connectionID string, schemaID string, values map[string]any) (string, error)
	AcceptOffer(ctx context.Context, offerID string) (string, error)
	GetCredentialRecord(ctx context.Context, credentialID string) (map[string]any, error)
	GetCredentialStatus(ctx context.Context, credentialID string) (*StatusListEntry, error)
}
