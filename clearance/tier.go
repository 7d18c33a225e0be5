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

// Package clearance defines the canonical clearance-tier lattice shared by
// every other component: the section parser, the encryptor, the registry
// and the re-encryption engine all compare tiers through this package
// rather than their own string constants.
package clearance

import (
	"fmt"
	"strings"
	"unicode"
)

// Tier is one of the four canonical clearance levels, strictly ordered by
// its integer value.
type Tier int

const (
	Unknown    Tier = 0
	Internal   Tier = 1
	Confidential Tier = 2
	Restricted   Tier = 3
	TopSecret    Tier = 4
)

// canonicalNames is the authoritative tier → wire-name table. Order matches
// declaration order so All() returns tiers lowest-to-highest.
var canonicalNames = []struct {
	tier Tier
	name string
}{
	{Internal, "INTERNAL"},
	{Confidential, "CONFIDENTIAL"},
	{Restricted, "RESTRICTED"},
	{TopSecret, "TOP-SECRET"},
}

// legacyNames maps deprecated spellings to their canonical tier. Only
// canonical names are ever persisted; this table is consulted at ingress
// only.
var legacyNames = map[string]Tier{
	"UNCLASSIFIED": Internal,
	"SECRET":       Restricted,
	"TOP_SECRET":   TopSecret,
}

// All returns the canonical tiers, lowest to highest.
func All() []Tier {
	tiers := make([]Tier, 0, len(canonicalNames))
	for _, e := range canonicalNames {
		tiers = append(tiers, e.tier)
	}
	return tiers
}

// String renders the tier's canonical wire name, or "" for Unknown.
func (t Tier) String() string {
	for _, e := range canonicalNames {
		if e.tier == t {
			return e.name
		}
	}
	return ""
}

// Valid reports whether t is one of the four canonical tiers.
func (t Tier) Valid() bool {
	return t >= Internal && t <= TopSecret
}

// Dominates reports whether t dominates other, i.e. level(t) >= level(other).
func (t Tier) Dominates(other Tier) bool {
	return t >= other
}

// Parse resolves a tier name to its canonical Tier, accepting both
// canonical spellings and the legacy table. Matching is exact on the
// canonical names (they are already normalized uppercase-with-hyphen) but
// the legacy table is also consulted case-sensitively, matching how the
// source systems emit these deprecated values verbatim.
func Parse(name string) (Tier, error) {
	trimmed := strings.TrimSpace(name)
	for _, e := range canonicalNames {
		if e.name == trimmed {
			return e.tier, nil
		}
	}
	if tier, ok := legacyNames[trimmed]; ok {
		return tier, nil
	}
	return Unknown, fmt.Errorf("unknown clearance tier: %q", name)
}

// Max returns the highest tier among the given tiers, or Unknown if the
// slice is empty.
func Max(tiers ...Tier) Tier {
	max := Unknown
	for _, t := range tiers {
		if t > max {
			max = t
		}
	}
	return max
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '-', '_':
			continue
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

var normalizedLookup = func() map[string]Tier {
	m := make(map[string]Tier)
	for _, e := range canonicalNames {
		m[normalize(e.name)] = e.tier
	}
	for name, tier := range legacyNames {
		m[normalize(name)] = tier
	}
	return m
}()

// ParseLoose resolves a tier name case- and separator-insensitively,
// accepting both canonical and legacy spellings. The DOCX paragraph-style
// matcher uses this: style names in the wild vary in casing and whether
// words are separated by spaces, hyphens or underscores.
func ParseLoose(name string) (Tier, error) {
	if tier, ok := normalizedLookup[normalize(name)]; ok {
		return tier, nil
	}
	return Unknown, fmt.Errorf("unknown clearance tier: %q", name)
}
