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
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/bytedance/sonic"
	"github.com/piprate/json-gold/ld"
)

const ldBase = "http://clearancevault.local/"

var (
	loaderOnce sync.Once
	loader     ld.DocumentLoader
)

func documentLoader() ld.DocumentLoader {
	loaderOnce.Do(func() {
		loader = ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil))
	})
	return loader
}

// normalizedHash computes the SHA-256 digest of a JSON-LD document's
// canonical N-Quads form, so two byte-different but semantically
// equivalent DID documents hash identically.
func normalizedHash(doc map[string]any) ([]byte, error) {
	if _, ok := doc["@context"]; !ok {
		// JSON-LD expansion drops every key that does not map to an IRI,
		// so a context-less document would normalize to nothing; default
		// the vocabulary to ldBase so its properties are canonicalized.
		doc["@context"] = map[string]any{"@vocab": ldBase}
	}
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions(ldBase)
	opts.ProcessingMode = ld.JsonLd_1_1
	opts.DocumentLoader = documentLoader()
	opts.Format = "application/n-quads"

	normalized, err := proc.Normalize(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("identity: normalizing document: %w", err)
	}

	hash := sha256.Sum256([]byte(normalized.(string)))
	return hash[:], nil
}

func toMap(doc *Document) (map[string]any, error) {
	encoded, err := sonic.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := sonic.Unmarshal(encoded, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// VerifySelfProof checks a DID document's own Ed25519Signature2018 proof
// against the key the document itself publishes, establishing that the
// document was published by the holder of its own authentication key.
func VerifySelfProof(doc *Document) (bool, error) {
	if doc.Proof == nil {
		return false, fmt.Errorf("identity: document has no proof")
	}

	key, ok := doc.AuthenticationKey()
	if !ok {
		return false, fmt.Errorf("identity: document has no resolvable authentication key")
	}

	sig := base58.Decode(doc.Proof.Value)

	unsigned := *doc
	unsigned.Proof = nil

	asMap, err := toMap(&unsigned)
	if err != nil {
		return false, err
	}

	hash, err := normalizedHash(asMap)
	if err != nil {
		return false, err
	}

	return ed25519.Verify(key, hash, sig), nil
}

// Sign produces an Ed25519Signature2018 proof over doc (excluding any
// existing proof) using key, attributing the signature to creator.
func Sign(doc *Document, creator string, key ed25519.PrivateKey) (*Proof, error) {
	unsigned := *doc
	unsigned.Proof = nil

	asMap, err := toMap(&unsigned)
	if err != nil {
		return nil, err
	}

	hash, err := normalizedHash(asMap)
	if err != nil {
		return nil, err
	}

	sig := ed25519.Sign(key, hash)
	return &Proof{
		Type:    Ed25519Signature2018Type,
		Creator: creator,
		Value:   base58.Encode(sig),
	}, nil
}

const Ed25519Signature2018Type = "Ed25519Signature2018"
