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

package clearance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCanonical(t *testing.T) {
	tier, err := Parse("TOP-SECRET")
	require.NoError(t, err)
	assert.Equal(t, TopSecret, tier)
}

func TestParseLegacy(t *testing.T) {
	cases := map[string]Tier{
		"UNCLASSIFIED": Internal,
		"SECRET":       Restricted,
		"TOP_SECRET":   TopSecret,
	}
	for name, expected := range cases {
		tier, err := Parse(name)
		require.NoError(t, err)
		assert.Equal(t, expected, tier)
	}
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse("SUPER-SECRET")
	assert.Error(t, err)
}

func TestDominates(t *testing.T) {
	assert.True(t, Restricted.Dominates(Confidential))
	assert.True(t, Restricted.Dominates(Restricted))
	assert.False(t, Confidential.Dominates(Restricted))
}

func TestMax(t *testing.T) {
	assert.Equal(t, TopSecret, Max(Internal, TopSecret, Confidential))
	assert.Equal(t, Unknown, Max())
}

func TestAllOrdered(t *testing.T) {
	tiers := All()
	require.Len(t, tiers, 4)
	for i := 1; i < len(tiers); i++ {
		assert.Less(t, tiers[i-1], tiers[i])
	}
}
