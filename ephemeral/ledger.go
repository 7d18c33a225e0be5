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

package ephemeral

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/clearancevault/core/utils"
	"github.com/clearancevault/core/utils/jsonw"
	"github.com/rs/zerolog/log"
)

// ViewEntry is one line of the view-once ledger: one recorded view of a
// (documentDID, requesterId) pair.
type ViewEntry struct {
	DocumentDID string    `json:"documentDID"`
	RequesterID string    `json:"requesterId"`
	CopyID      string    `json:"copyId"`
	Timestamp   time.Time `json:"ts"`
	ClientIP    string    `json:"clientIp,omitempty"`
}

type ledgerKey struct {
	documentDID string
	requesterID string
}

// Ledger is the append-only, disk-backed view-once ledger from §4.5.
// Inserts for a given (documentDID, requesterId) pair are serialized by a
// per-key mutex so a concurrent double-request can never produce two
// "first views" for the same pair.
type Ledger struct {
	path    string
	file    *os.File
	mu      sync.Mutex
	keyLock sync.Map // ledgerKey -> *sync.Mutex
	entries map[ledgerKey][]ViewEntry
}

// OpenLedger opens (creating if needed) the ledger file at path, replaying
// any existing entries into memory. Corrupt lines are skipped with a
// warning, never fatal: a torn write at process crash must not prevent
// startup.
func OpenLedger(path string) (*Ledger, error) {
	absPath := utils.AbsPathify(path)

	l := &Ledger{
		path:    absPath,
		entries: make(map[ledgerKey][]ViewEntry),
	}

	if existing, err := os.Open(absPath); err == nil {
		scanner := bufio.NewScanner(existing)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var entry ViewEntry
			if err := jsonw.Unmarshal(line, &entry); err != nil {
				log.Warn().Err(err).Int("line", lineNum).Str("path", absPath).
					Msg("ephemeral: skipping corrupt view-once ledger line")
				continue
			}
			key := ledgerKey{documentDID: entry.DocumentDID, requesterID: entry.RequesterID}
			l.entries[key] = append(l.entries[key], entry)
		}
		existing.Close()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("ephemeral: opening view-once ledger: %w", err)
	}

	file, err := os.OpenFile(absPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ephemeral: opening view-once ledger for append: %w", err)
	}
	l.file = file

	return l, nil
}

func (l *Ledger) keyMutex(key ledgerKey) *sync.Mutex {
	m, _ := l.keyLock.LoadOrStore(key, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// RecordView serializes concurrent inserts for the same (documentDID,
// requesterId) pair, appends the entry to the on-disk ledger (fsync'd
// before return), and updates the in-memory view, returning whether this
// was the first recorded view of the pair.
func (l *Ledger) RecordView(entry ViewEntry) (firstView bool, err error) {
	key := ledgerKey{documentDID: entry.DocumentDID, requesterID: entry.RequesterID}
	km := l.keyMutex(key)
	km.Lock()
	defer km.Unlock()

	l.mu.Lock()
	firstView = len(l.entries[key]) == 0
	l.mu.Unlock()

	encoded, err := jsonw.Marshal(entry)
	if err != nil {
		return firstView, err
	}
	encoded = append(encoded, '\n')

	l.mu.Lock()
	_, writeErr := l.file.Write(encoded)
	if writeErr == nil {
		writeErr = l.file.Sync()
	}
	if writeErr == nil {
		l.entries[key] = append(l.entries[key], entry)
	}
	l.mu.Unlock()

	if writeErr != nil {
		return firstView, fmt.Errorf("ephemeral: persisting view-once ledger entry: %w", writeErr)
	}
	return firstView, nil
}

// Views returns the ledger entries recorded so far for a given pair.
func (l *Ledger) Views(documentDID, requesterID string) []ViewEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey{documentDID: documentDID, requesterID: requesterID}
	out := make([]ViewEntry, len(l.entries[key]))
	copy(out, l.entries[key])
	return out
}

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
