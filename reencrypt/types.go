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

// Package reencrypt implements the end-to-end access-grant pipeline:
// authenticate the requester, authorize against the registry record,
// fetch the stored blob as the BlobStore returns it, re-encrypt it for the requester's
// ephemeral key, and audit the decision either way.
package reencrypt

import (
	"time"

	"github.com/clearancevault/core/clearance"
	"github.com/clearancevault/core/ephemeral"
)

// ErrorCode names a denial reason, matching the taxonomy in §4.4.
type ErrorCode string

const (
	ErrInvalidSignature  ErrorCode = "INVALID_SIGNATURE"
	ErrReplayDetected    ErrorCode = "REPLAY_DETECTED"
	ErrDocumentNotFound  ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrReleasabilityDenied ErrorCode = "RELEASABILITY_DENIED"
	ErrClearanceDenied   ErrorCode = "CLEARANCE_DENIED"
	ErrCredentialRevoked ErrorCode = "CREDENTIAL_REVOKED"
	ErrNoStorageInfo     ErrorCode = "NO_STORAGE_INFO"
	ErrStorageError      ErrorCode = "STORAGE_ERROR"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
)

// Denial is returned by Grant for any pipeline step that rejects the
// request; it is always written to the audit log before being returned.
type Denial struct {
	Reason  ErrorCode
	Message string
}

func (d *Denial) Error() string {
	if d.Message == "" {
		return string(d.Reason)
	}
	return string(d.Reason) + ": " + d.Message
}

func deny(reason ErrorCode, message string) *Denial {
	return &Denial{Reason: reason, Message: message}
}

// Request is the §4.4 access request.
type Request struct {
	DocumentDID     string
	RequesterID     string
	IssuerID        string
	ClearanceLevel  clearance.Tier
	// EphemeralID doubles as the canonical payload's ephemeralDID: the
	// requester's per-session ephemeral identity, distinct from the
	// longer-lived identity ephemeral.Descriptor later mints for the
	// granted copy.
	EphemeralID     string
	EphemeralPubKey []byte
	Signature       []byte
	Timestamp       time.Time
	// TimestampRaw is the verbatim ISO8601 string the requester signed;
	// re-serializing Timestamp could legally differ byte-for-byte
	// (fractional seconds, zone form) and would break verification.
	TimestampRaw string
	Nonce        string
	ClientIP        string
	UserAgent       string
}

// Result is the successful §4.4 step 10 return value.
type Result struct {
	CopyID              string
	CopyHash            string
	Filename            string
	ClassificationLevel clearance.Tier
	Ciphertext          string
	Nonce               string
	ServerPublicKey     string
	AccessedAt          time.Time

	// ExpiresAt, ViewsAllowed and Status mirror the §4.5 copy descriptor
	// minted for this grant; AccessToken is its compact signed access
	// token, and Bundle is the full wire envelope a requester uses to
	// retrieve and decrypt the copy.
	ExpiresAt    time.Time
	ViewsAllowed int
	Status       ephemeral.Status
	AccessToken  string
	Bundle       ephemeral.Bundle
}
