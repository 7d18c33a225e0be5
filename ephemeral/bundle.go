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
	"encoding/base64"

	"github.com/clearancevault/core/clearance"
)

const BundleType = "document-copy/1.0/deliver"

// DocumentCopy is the non-cryptographic half of the §4.5 copy bundle.
type DocumentCopy struct {
	DocumentDID            string         `json:"documentDID"`
	EphemeralID            string         `json:"ephemeralId"`
	Title                  string         `json:"title"`
	OverallClassification  clearance.Tier `json:"overallClassification"`
	ClearanceLevelGranted  clearance.Tier `json:"clearanceLevelGranted"`
	SectionSummary         []string       `json:"sectionSummary"`
	SourceInfo             string         `json:"sourceInfo,omitempty"`
	AccessRights           AccessRights   `json:"accessRights"`
	ContentHash            string         `json:"contentHash"`
}

// Encryption describes how Attachment was sealed: the §4.4 step 9
// NaCl box output.
type Encryption struct {
	Algorithm       string `json:"algorithm"`
	ServerPublicKey string `json:"serverPublicKey"`
	Nonce           string `json:"nonce"`
}

// Bundle is the full wire envelope delivered to a requester after a
// successful access grant.
type Bundle struct {
	Type         string       `json:"type"`
	DocumentCopy DocumentCopy `json:"documentCopy"`
	Encryption   Encryption   `json:"encryption"`
	Attachment   string       `json:"attachment"`
}

// NewBundle assembles the wire bundle from a copy descriptor, the
// originating document's metadata, and the §4.4 step 9 box output.
func NewBundle(d *Descriptor, title string, overallClassification clearance.Tier, sectionSummary []string, sourceInfo, contentHash string, algorithm, serverPublicKey, nonce string, ciphertext []byte) Bundle {
	return Bundle{
		Type: BundleType,
		DocumentCopy: DocumentCopy{
			DocumentDID:           d.DocumentDID,
			EphemeralID:           d.EphemeralID,
			Title:                 title,
			OverallClassification: overallClassification,
			ClearanceLevelGranted: d.ClearanceLevelGranted,
			SectionSummary:        sectionSummary,
			SourceInfo:            sourceInfo,
			AccessRights:          d.AccessRights(),
			ContentHash:           contentHash,
		},
		Encryption: Encryption{
			Algorithm:       algorithm,
			ServerPublicKey: serverPublicKey,
			Nonce:           nonce,
		},
		Attachment: base64.StdEncoding.EncodeToString(ciphertext),
	}
}
