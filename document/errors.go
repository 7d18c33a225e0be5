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

package document

import "fmt"

// ParseErrorKind enumerates the taxonomy in §7: MalformedInput,
// EmptyDocument, UnknownTier.
type ParseErrorKind string

const (
	MalformedInput ParseErrorKind = "MalformedInput"
	EmptyDocument  ParseErrorKind = "EmptyDocument"
	UnknownTier    ParseErrorKind = "UnknownTier"
)

// ParseError is returned by parseHtml/parseDocx when the input cannot be
// turned into a ParsedDocument at all. Recoverable per-element problems
// (an unknown tier on one element, a nested tagged element) are reported
// as warnings instead and do not produce a ParseError.
type ParseError struct {
	Kind  ParseErrorKind
	Value string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("parse error: %s: %s", e.Kind, e.Value)
	}
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Kind)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func newMalformedInput(cause error) *ParseError {
	return &ParseError{Kind: MalformedInput, Cause: cause}
}

func newEmptyDocument() *ParseError {
	return &ParseError{Kind: EmptyDocument}
}

func newUnknownTier(value string) *ParseError {
	return &ParseError{Kind: UnknownTier, Value: value}
}

// CryptoErrorKind enumerates the §7 crypto taxonomy.
type CryptoErrorKind string

const (
	IntegrityFailure    CryptoErrorKind = "IntegrityFailure"
	AuthTagMismatch     CryptoErrorKind = "AuthTagMismatch"
	UnsupportedAlgorithm CryptoErrorKind = "UnsupportedAlgorithm"
)

// CryptoError wraps a failure in the section encryptor/decryptor. In the
// request pipeline this is always converted to a denial with reason
// INTERNAL_ERROR; it is never surfaced to a client verbatim.
type CryptoError struct {
	Kind  CryptoErrorKind
	Cause error
}

func (e *CryptoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crypto error: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("crypto error: %s", e.Kind)
}

func (e *CryptoError) Unwrap() error {
	return e.Cause
}
