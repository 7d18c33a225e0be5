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
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/clearancevault/core/audit"
	"github.com/clearancevault/core/clearance"
	"github.com/clearancevault/core/config"
	"github.com/clearancevault/core/ephemeral"
	"github.com/clearancevault/core/identity"
	"github.com/clearancevault/core/registry"
	"github.com/clearancevault/core/revocation"
	"github.com/clearancevault/core/storage"
	"github.com/clearancevault/core/utils/measure"
	"github.com/rs/zerolog/log"
)

const (
	signatureSkew = 5 * time.Minute
	signatureLen  = 64

	// unlimitedViews marks a minted copy as viewable any number of times
	// until expiresAt; §4.5's "current policy does not deny on prior
	// view" leaves the ledger, not a view cap, as the audit mechanism.
	unlimitedViews = -1
)

// Engine wires the registry, blob store, identity agent, revocation
// client and audit log into the §4.4 access-grant pipeline.
type Engine struct {
	Registry   *registry.Registry
	BlobStore  storage.BlobStore
	Identity   identity.Agent
	Revocation *revocation.Client
	Ledger     *ephemeral.Ledger
	Audit      *audit.Log

	// BlobFetchTimeout bounds step 7's blob-store read, per §5's
	// cancellation requirements. Defaults to config.DefaultBlobFetchTimeout
	// but callers that loaded a config.Config may override it directly.
	BlobFetchTimeout time.Duration

	nonces *nonceCache
	clock  func() time.Time
}

func NewEngine(reg *registry.Registry, blobs storage.BlobStore, idAgent identity.Agent, revoc *revocation.Client, ledger *ephemeral.Ledger, auditLog *audit.Log) *Engine {
	return &Engine{
		Registry:         reg,
		BlobStore:        blobs,
		Identity:         idAgent,
		Revocation:       revoc,
		Ledger:           ledger,
		Audit:            auditLog,
		BlobFetchTimeout: config.DefaultBlobFetchTimeout,
		nonces:           newNonceCache(),
		clock:            time.Now,
	}
}

// SweepNonces evicts expired replay-cache entries; intended to be called
// periodically by a scheduler.
func (e *Engine) SweepNonces() int {
	return e.nonces.Sweep(e.clock())
}

// Grant runs the full ten-step pipeline for one access request.
func (e *Engine) Grant(ctx context.Context, req Request) (*Result, *Denial) {
	defer measure.ExecTime("reencrypt.Grant")()
	start := e.clock()

	denial := e.runPipeline(ctx, req, start)
	if denial != nil {
		e.auditDenial(req, denial, start)
		return nil, denial
	}

	result, resultDenial := e.fetchAndSeal(ctx, req, start)
	if resultDenial != nil {
		e.auditDenial(req, resultDenial, start)
		return nil, resultDenial
	}

	e.Audit.Write(audit.Entry{
		Timestamp:        start,
		DocumentDID:      req.DocumentDID,
		RequesterID:      req.RequesterID,
		IssuerID:         req.IssuerID,
		ClearanceLevel:   int(req.ClearanceLevel),
		EphemeralID:      req.EphemeralID,
		ClientIP:         req.ClientIP,
		UserAgent:        req.UserAgent,
		AccessGranted:    true,
		CopyID:           result.CopyID,
		ProcessingTimeMs: e.clock().Sub(start).Milliseconds(),
	})

	return result, nil
}

// runPipeline covers steps 1–6: everything read-only against shared
// state, cheap enough to run before any blob I/O is attempted.
func (e *Engine) runPipeline(ctx context.Context, req Request, now time.Time) *Denial {
	if d := e.verifySignature(ctx, req, now); d != nil {
		return d
	}

	if !e.nonces.Admit(req.Nonce, now) {
		return deny(ErrReplayDetected, "nonce already seen within TTL window")
	}

	record, ok := e.Registry.FindByDocumentID(req.DocumentDID)
	if !ok {
		return deny(ErrDocumentNotFound, req.DocumentDID)
	}

	if !containsOrg(record.ReleasableTo, req.IssuerID) {
		return deny(ErrReleasabilityDenied, fmt.Sprintf("%s not in releasableTo", req.IssuerID))
	}

	if !req.ClearanceLevel.Dominates(record.ClassificationLevel) {
		return deny(ErrClearanceDenied, fmt.Sprintf("requester clearance %s below required %s", req.ClearanceLevel, record.ClassificationLevel))
	}

	revResult := e.Revocation.Check(ctx, req.RequesterID, req.IssuerID, "")
	if revResult.Status == revocation.StatusRevoked {
		return deny(ErrCredentialRevoked, "credential revoked by issuer")
	}
	if revResult.Status == revocation.StatusCheckFailed {
		log.Warn().Str("requesterId", req.RequesterID).Str("issuerId", req.IssuerID).
			Msg("reencrypt: revocation check failed, admitting per fail-open policy")
	}

	return nil
}

// verifySignature implements step 1: canonical-payload Ed25519
// verification against the requester's published authentication key.
func (e *Engine) verifySignature(ctx context.Context, req Request, now time.Time) *Denial {
	if len(req.Signature) != signatureLen {
		return deny(ErrInvalidSignature, fmt.Sprintf("signature must be %d bytes", signatureLen))
	}

	skew := now.Sub(req.Timestamp)
	if skew < 0 {
		skew = -skew
	}
	if skew > signatureSkew {
		return deny(ErrInvalidSignature, "timestamp outside 5-minute skew window")
	}

	doc, err := e.Identity.GetDIDStatus(ctx, req.RequesterID)
	if err != nil {
		return deny(ErrInvalidSignature, fmt.Sprintf("resolving requester DID document: %v", err))
	}

	if ok, err := identity.VerifySelfProof(doc); err != nil || !ok {
		return deny(ErrInvalidSignature, "requester DID document failed self-proof verification")
	}

	key, ok := doc.AuthenticationKey()
	if !ok {
		return deny(ErrInvalidSignature, "requester DID document has no authentication key")
	}

	payload := CanonicalPayload(req.DocumentDID, req.EphemeralID, req.TimestampRaw, req.Nonce)
	if !ed25519.Verify(key, payload, req.Signature) {
		return deny(ErrInvalidSignature, "signature verification failed")
	}

	return nil
}

// CanonicalPayload builds the UTF-8 fixed-key-order JSON object §4.4 step
// 1 specifies. It is built by hand, not via a map, because Go map
// iteration order is undefined and a struct's json tag order is not
// guaranteed stable enough to pin as a wire contract.
func CanonicalPayload(documentDID, ephemeralDID, timestamp, nonce string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"documentDID":`)
	writeJSONString(&buf, documentDID)
	buf.WriteString(`,"ephemeralDID":`)
	writeJSONString(&buf, ephemeralDID)
	buf.WriteString(`,"timestamp":`)
	writeJSONString(&buf, timestamp)
	buf.WriteString(`,"nonce":`)
	writeJSONString(&buf, nonce)
	buf.WriteString(`}`)
	return buf.Bytes()
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// fetchAndSeal covers steps 7–9: blob fetch, view-once ledger insertion,
// NaCl box re-encryption for the requester's ephemeral key, and minting
// the §4.5 copy descriptor that governs the result's lifetime.
func (e *Engine) fetchAndSeal(ctx context.Context, req Request, now time.Time) (*Result, *Denial) {
	record, ok := e.Registry.FindByDocumentID(req.DocumentDID)
	if !ok {
		return nil, deny(ErrDocumentNotFound, req.DocumentDID)
	}

	if record.BlobHandle.BlobID == "" {
		return nil, deny(ErrNoStorageInfo, "record has no blob handle")
	}

	fetchCtx := ctx
	if e.BlobFetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.BlobFetchTimeout)
		defer cancel()
	}

	var params map[string]any
	reader, err := e.BlobStore.Get(fetchCtx, record.BlobHandle.BlobID, params)
	if err != nil {
		return nil, deny(ErrStorageError, err.Error())
	}
	defer reader.Close()

	content := bytes.NewBuffer(nil)
	if _, err := content.ReadFrom(reader); err != nil {
		return nil, deny(ErrStorageError, err.Error())
	}
	plaintext := content.Bytes()

	redactedSectionIDs, visibleSectionIDs := splitSections(record.SectionMetadata, req.ClearanceLevel)

	descriptor := ephemeral.NewDescriptor(req.DocumentDID, req.RequesterID, req.ClearanceLevel, redactedSectionIDs, 0, unlimitedViews, now)
	copyID := descriptor.EphemeralID

	copyHashBytes := sha256.Sum256(append(append([]byte(nil), plaintext...), []byte(copyID)...))
	copyHash := hex.EncodeToString(copyHashBytes[:])

	if e.Ledger != nil {
		if _, err := e.Ledger.RecordView(ephemeral.ViewEntry{
			DocumentDID: req.DocumentDID,
			RequesterID: req.RequesterID,
			CopyID:      copyID,
			Timestamp:   now,
			ClientIP:    req.ClientIP,
		}); err != nil {
			log.Error().Err(err).Str("documentDID", req.DocumentDID).Msg("reencrypt: failed to persist view-once ledger entry")
		}
	}

	requesterKey, err := decodeRequesterPubKey(req.EphemeralPubKey)
	if err != nil {
		return nil, deny(ErrInvalidSignature, err.Error())
	}

	sealed, err := sealForRequester(plaintext, requesterKey, descriptor.KeyPair)
	if err != nil {
		return nil, deny(ErrInternalError, err.Error())
	}

	accessToken, err := descriptor.IssueToken(now)
	if err != nil {
		return nil, deny(ErrInternalError, err.Error())
	}

	bundle := ephemeral.NewBundle(descriptor, record.BlobHandle.Filename, record.ClassificationLevel,
		visibleSectionIDs, record.DocumentDID, copyHash, BoxAlgorithm,
		sealed.ServerPublicKey, sealed.Nonce, sealed.Ciphertext)

	return &Result{
		CopyID:              copyID,
		CopyHash:            copyHash,
		Filename:            record.BlobHandle.Filename,
		ClassificationLevel: record.ClassificationLevel,
		Ciphertext:          base64.StdEncoding.EncodeToString(sealed.Ciphertext),
		Nonce:               sealed.Nonce,
		ServerPublicKey:     sealed.ServerPublicKey,
		AccessedAt:          now,
		ExpiresAt:           descriptor.ExpiresAt,
		ViewsAllowed:        descriptor.ViewsAllowed,
		Status:              descriptor.Status,
		AccessToken:         accessToken,
		Bundle:              bundle,
	}, nil
}

// splitSections partitions a classified record's section IDs by whether
// the granted clearance tier dominates each section's own tier. A
// standard (non-classified) record has no SectionMetadata and yields no
// redactions.
func splitSections(sm *registry.SectionMetadataSummary, granted clearance.Tier) (redacted, visible []string) {
	if sm == nil {
		return nil, nil
	}
	for _, s := range sm.PerSection {
		if granted.Dominates(s.Clearance) {
			visible = append(visible, s.SectionID)
		} else {
			redacted = append(redacted, s.SectionID)
		}
	}
	return redacted, visible
}

// ListAccessible implements the §4.4 alternative operation: registry
// enumeration applying only the releasability and clearance-dominance
// gates (steps 4–5), without touching any blob.
func (e *Engine) ListAccessible(issuerID string, holderTier clearance.Tier) []registry.DiscoverableDoc {
	return e.Registry.QueryByIssuer(issuerID, holderTier)
}

func (e *Engine) auditDenial(req Request, d *Denial, start time.Time) {
	e.Audit.Write(audit.Entry{
		Timestamp:        start,
		DocumentDID:      req.DocumentDID,
		RequesterID:      req.RequesterID,
		IssuerID:         req.IssuerID,
		ClearanceLevel:   int(req.ClearanceLevel),
		EphemeralID:      req.EphemeralID,
		ClientIP:         req.ClientIP,
		UserAgent:        req.UserAgent,
		AccessGranted:    false,
		DenialReason:     string(d.Reason),
		ProcessingTimeMs: e.clock().Sub(start).Milliseconds(),
	})
}

func containsOrg(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
