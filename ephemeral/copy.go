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

// Package ephemeral binds an access grant to a time-and-count-limited
// copy identity: a descriptor with its own X25519 keypair, a compact
// signed access token, and a durable view-once ledger recording every
// view of each (documentDID, requesterId) pair.
package ephemeral

import (
	"sync"
	"time"

	"github.com/clearancevault/core/clearance"
	"github.com/google/uuid"
	"github.com/jamesruan/sodium"
)

// Status is the lifecycle state of a copy descriptor.
type Status string

const (
	StatusActive   Status = "active"
	StatusConsumed Status = "consumed"
	StatusRevoked  Status = "revoked"
)

const defaultTTL = time.Hour

// AccessRights mirrors the §4.5 copy-bundle accessRights field. Download
// and print are permanently disabled at this phase: only inline viewing
// is supported.
type AccessRights struct {
	ExpiresAt       time.Time `json:"expiresAt"`
	ViewsAllowed    int       `json:"viewsAllowed"`
	DownloadAllowed bool      `json:"downloadAllowed"`
	PrintAllowed    bool      `json:"printAllowed"`
}

// Descriptor is a live copy identity: everything needed to validate and
// serve one holder's view of one document, independent of the
// re-encryption ciphertext itself.
type Descriptor struct {
	EphemeralID            string
	DocumentDID             string
	RequesterID             string
	ClearanceLevelGranted   clearance.Tier
	RedactedSectionIDs      []string
	KeyPair                 sodium.BoxKP
	CreatedAt               time.Time
	ExpiresAt               time.Time
	ViewsAllowed            int
	ViewCount               int
	LastViewedAt            time.Time
	Status                  Status
	RevokedAt               time.Time
	RevocationReason        string

	mu sync.Mutex
}

// NewDescriptor mints a copy identity for a just-granted access request.
// ttl defaults to one hour when zero; viewsAllowed of -1 means unlimited.
func NewDescriptor(documentDID, requesterID string, grantedTier clearance.Tier, redactedSectionIDs []string, ttl time.Duration, viewsAllowed int, now time.Time) *Descriptor {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Descriptor{
		EphemeralID:           uuid.NewString(),
		DocumentDID:           documentDID,
		RequesterID:           requesterID,
		ClearanceLevelGranted: grantedTier,
		RedactedSectionIDs:    redactedSectionIDs,
		KeyPair:               sodium.MakeBoxKP(),
		CreatedAt:             now,
		ExpiresAt:             now.Add(ttl),
		ViewsAllowed:          viewsAllowed,
		Status:                StatusActive,
	}
}

// AccessRights returns the wire-facing access rights for the copy bundle.
func (d *Descriptor) AccessRights() AccessRights {
	d.mu.Lock()
	defer d.mu.Unlock()
	return AccessRights{
		ExpiresAt:       d.ExpiresAt,
		ViewsAllowed:    d.ViewsAllowed,
		DownloadAllowed: false,
		PrintAllowed:    false,
	}
}

// Valid implements the §4.5 validity predicate.
func (d *Descriptor) Valid(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.validLocked(now)
}

func (d *Descriptor) validLocked(now time.Time) bool {
	if now.After(d.ExpiresAt) {
		return false
	}
	if d.Status != StatusActive {
		return false
	}
	return d.ViewsAllowed == -1 || d.ViewCount < d.ViewsAllowed
}

// Serve evaluates the validity predicate and, if valid, increments
// viewCount and updates lastViewedAt, returning whether this view was
// admitted. Crossing the view threshold transitions status to consumed.
func (d *Descriptor) Serve(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.validLocked(now) {
		return false
	}

	d.ViewCount++
	d.LastViewedAt = now
	if d.ViewsAllowed != -1 && d.ViewCount >= d.ViewsAllowed {
		d.Status = StatusConsumed
	}
	return true
}

// Revoke sets status to revoked with the given reason, regardless of
// current state.
func (d *Descriptor) Revoke(reason string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Status = StatusRevoked
	d.RevokedAt = now
	d.RevocationReason = reason
}

// ExtendTTL bumps expiresAt by delta, only if the copy is currently valid.
func (d *Descriptor) ExtendTTL(delta time.Duration, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.validLocked(now) {
		return false
	}
	d.ExpiresAt = d.ExpiresAt.Add(delta)
	return true
}
