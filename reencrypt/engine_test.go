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

package reencrypt

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/clearancevault/core/audit"
	"github.com/clearancevault/core/clearance"
	"github.com/clearancevault/core/ephemeral"
	"github.com/clearancevault/core/identity"
	"github.com/clearancevault/core/registry"
	"github.com/clearancevault/core/revocation"
	"github.com/clearancevault/core/storage/memory"
	"github.com/jamesruan/sodium"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIdentity struct {
	identity.Agent
	doc *identity.Document
}

func (s *stubIdentity) GetDIDStatus(_ context.Context, _ string) (*identity.Document, error) {
	return s.doc, nil
}

func (s *stubIdentity) GetCredentialStatus(_ context.Context, _ string) (*identity.StatusListEntry, error) {
	return nil, errors.New("stub: no status list configured")
}

func (s *stubIdentity) GetCredentialRecord(_ context.Context, _ string) (map[string]any, error) {
	return nil, nil
}

func newTestSetup(t *testing.T) (*Engine, ed25519.PrivateKey, registry.NewRecordInput) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	requesterDID := "did:cv:requester"
	doc := &identity.Document{
		ID: requesterDID,
		PublicKey: []identity.VerificationMethod{
			{ID: requesterDID + "#key-1", PublicKeyBase58: base58.Encode(pub)},
		},
		Authentication: []string{requesterDID + "#key-1"},
	}
	proof, err := identity.Sign(doc, requesterDID+"#key-1", priv)
	require.NoError(t, err)
	doc.Proof = proof

	reg, err := registry.Open(registry.Config{})
	require.NoError(t, err)

	blobs := memory.New()
	blobID, err := blobs.Put(context.Background(), strings.NewReader("classified content"), nil)
	require.NoError(t, err)

	input := registry.NewRecordInput{
		DocumentDID:         "did:doc:report-1",
		ClassificationLevel: clearance.Confidential,
		ReleasableTo:        []string{"org-allies"},
		BlobHandle:          registry.BlobHandle{BlobID: blobID, Filename: "report.html", ContentHash: "abc"},
		DocumentType:        registry.DocumentStandard,
	}
	_, err = reg.Register(input, map[string]any{"title": "report"})
	require.NoError(t, err)

	ledger, err := ephemeral.OpenLedger(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { auditLog.Close() })

	idAgent := &stubIdentity{doc: doc}
	revClient := revocation.NewClient(idAgent)

	engine := NewEngine(reg, blobs, idAgent, revClient, ledger, auditLog)

	return engine, priv, input
}

func signedRequest(t *testing.T, priv ed25519.PrivateKey, documentDID string, now time.Time) Request {
	t.Helper()

	ephemeralID := "eph-1"
	timestampRaw := now.UTC().Format(time.RFC3339)
	nonce := "nonce-1"

	payload := CanonicalPayload(documentDID, ephemeralID, timestampRaw, nonce)
	sig := ed25519.Sign(priv, payload)

	kp := sodium.MakeBoxKP()

	return Request{
		DocumentDID:     documentDID,
		RequesterID:     "did:cv:requester",
		IssuerID:        "org-allies",
		ClearanceLevel:  clearance.Restricted,
		EphemeralID:     ephemeralID,
		EphemeralPubKey: append([]byte(nil), kp.PublicKey.Bytes...),
		Signature:       sig,
		Timestamp:       now,
		TimestampRaw:    timestampRaw,
		Nonce:           nonce,
		ClientIP:        "10.0.0.1",
		UserAgent:       "test-agent",
	}
}

func TestGrantSucceeds(t *testing.T) {
	engine, priv, input := newTestSetup(t)
	now := time.Now()
	req := signedRequest(t, priv, input.DocumentDID, now)

	result, denial := engine.Grant(context.Background(), req)
	require.Nil(t, denial)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.CopyID)
	assert.NotEmpty(t, result.Ciphertext)
	assert.Equal(t, clearance.Confidential, result.ClassificationLevel)

	assert.Equal(t, ephemeral.StatusActive, result.Status)
	assert.Equal(t, -1, result.ViewsAllowed)
	assert.WithinDuration(t, now.Add(time.Hour), result.ExpiresAt, time.Second)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, ephemeral.BundleType, result.Bundle.Type)
}

func TestGrantRejectsReplayedNonce(t *testing.T) {
	engine, priv, input := newTestSetup(t)
	now := time.Now()
	req := signedRequest(t, priv, input.DocumentDID, now)

	_, denial := engine.Grant(context.Background(), req)
	require.Nil(t, denial)

	req2 := req
	_, denial2 := engine.Grant(context.Background(), req2)
	require.NotNil(t, denial2)
	assert.Equal(t, ErrReplayDetected, denial2.Reason)
}

func TestGrantRejectsBadSignature(t *testing.T) {
	engine, priv, input := newTestSetup(t)
	now := time.Now()
	req := signedRequest(t, priv, input.DocumentDID, now)
	req.Signature[0] ^= 0xFF

	_, denial := engine.Grant(context.Background(), req)
	require.NotNil(t, denial)
	assert.Equal(t, ErrInvalidSignature, denial.Reason)
}

func TestGrantRejectsInsufficientClearance(t *testing.T) {
	engine, priv, input := newTestSetup(t)
	now := time.Now()
	req := signedRequest(t, priv, input.DocumentDID, now)
	req.ClearanceLevel = clearance.Internal

	_, denial := engine.Grant(context.Background(), req)
	require.NotNil(t, denial)
	assert.Equal(t, ErrClearanceDenied, denial.Reason)
}

func TestGrantRejectsUnknownIssuer(t *testing.T) {
	engine, priv, input := newTestSetup(t)
	now := time.Now()
	req := signedRequest(t, priv, input.DocumentDID, now)
	req.IssuerID = "org-enemy"

	_, denial := engine.Grant(context.Background(), req)
	require.NotNil(t, denial)
	assert.Equal(t, ErrReleasabilityDenied, denial.Reason)
}

func TestGrantRejectsUnknownDocument(t *testing.T) {
	engine, priv, _ := newTestSetup(t)
	now := time.Now()
	req := signedRequest(t, priv, "did:doc:unknown", now)

	_, denial := engine.Grant(context.Background(), req)
	require.NotNil(t, denial)
	assert.Equal(t, ErrDocumentNotFound, denial.Reason)
}

func TestGrantRejectsMissingSelfProof(t *testing.T) {
	engine, priv, input := newTestSetup(t)
	engine.Identity.(*stubIdentity).doc.Proof = nil

	now := time.Now()
	req := signedRequest(t, priv, input.DocumentDID, now)

	_, denial := engine.Grant(context.Background(), req)
	require.NotNil(t, denial)
	assert.Equal(t, ErrInvalidSignature, denial.Reason)
}

func TestGrantRejectsStaleTimestamp(t *testing.T) {
	engine, priv, input := newTestSetup(t)
	now := time.Now().Add(-10 * time.Minute)
	req := signedRequest(t, priv, input.DocumentDID, now)

	_, denial := engine.Grant(context.Background(), req)
	require.NotNil(t, denial)
	assert.Equal(t, ErrInvalidSignature, denial.Reason)
}
