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

// Package audit implements the append-only access-grant audit log and an
// internal pub/sub feed so other components (alerting, SIEM shipping) can
// observe access decisions in real time without coupling to the
// re-encryption engine.
package audit

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/clearancevault/core/utils"
	"github.com/clearancevault/core/utils/jsonw"
	"github.com/cskr/pubsub"
	"github.com/rs/zerolog/log"
)

const Topic = "access-grants"

// Entry is one access-grant decision, per §4.4 step 10. AccessGranted is
// false for every denial path; DenialReason is populated only then.
type Entry struct {
	Timestamp        time.Time `json:"ts"`
	DocumentDID      string    `json:"documentDID"`
	RequesterID      string    `json:"requesterId"`
	IssuerID         string    `json:"issuerId,omitempty"`
	ClearanceLevel   int       `json:"clearanceLevel,omitempty"`
	EphemeralID      string    `json:"ephemeralId,omitempty"`
	ClientIP         string    `json:"clientIp,omitempty"`
	UserAgent        string    `json:"userAgent,omitempty"`
	AccessGranted    bool      `json:"accessGranted"`
	DenialReason     string    `json:"denialReason,omitempty"`
	CopyID           string    `json:"copyId,omitempty"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
}

// Log is the append-only, single-writer audit log described in §4.3/§5:
// ordered per-process, fsync'd after each append.
type Log struct {
	mu   sync.Mutex
	file *os.File
	bus  *pubsub.PubSub
}

// Open creates (or appends to) the audit log file at path.
func Open(path string) (*Log, error) {
	absPath := utils.AbsPathify(path)
	file, err := os.OpenFile(absPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: opening log: %w", err)
	}
	return &Log{file: file, bus: pubsub.New(64)}, nil
}

// Write appends entry to the log, fsyncs, and publishes it to any
// subscribers. Write errors are logged but never block the caller's
// access-grant decision from being returned: a full disk must not make
// the core unavailable, only unauditable (and loudly so).
func (l *Log) Write(entry Entry) {
	encoded, err := jsonw.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Msg("audit: failed to marshal entry")
		return
	}
	encoded = append(encoded, '\n')

	l.mu.Lock()
	_, writeErr := l.file.Write(encoded)
	if writeErr == nil {
		writeErr = l.file.Sync()
	}
	l.mu.Unlock()

	if writeErr != nil {
		log.Error().Err(writeErr).Str("documentDID", entry.DocumentDID).Msg("audit: failed to persist entry")
	}

	l.bus.Pub(entry, Topic)
}

// Subscribe returns a channel of published entries; callers must drain
// it or call Unsubscribe to avoid blocking publication.
func (l *Log) Subscribe() chan any {
	return l.bus.Sub(Topic)
}

func (l *Log) Unsubscribe(ch chan any) {
	l.bus.Unsub(ch)
}

func (l *Log) Close() error {
	l.bus.Shutdown()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
