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

package registry

import "errors"

var (
	// ErrNotFound is returned by Get/GetClassified when documentDID is
	// unknown to the registry.
	ErrNotFound = errors.New("registry: document not found")

	// ErrUnauthorized is returned by Get/GetClassified when requesterId is
	// not a member of the record's releasableTo set.
	ErrUnauthorized = errors.New("registry: requester not authorized")

	// ErrMissingRequiredField is returned by Register/RegisterClassified
	// when a required field is absent.
	ErrMissingRequiredField = errors.New("registry: missing required field")

	// ErrInvalidTier is returned when ClassificationLevel is not a
	// canonical tier.
	ErrInvalidTier = errors.New("registry: invalid clearance tier")

	// ErrCorruptRegistry is returned at load time when the snapshot's
	// HMAC signature does not match. The process must refuse to serve
	// rather than start with partial, possibly-tampered state.
	ErrCorruptRegistry = errors.New("registry: corrupt snapshot, signature mismatch")
)
