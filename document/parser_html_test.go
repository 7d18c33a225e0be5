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

import (
	"testing"

	"github.com/clearancevault/core/clearance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `
<html>
<head>
  <meta name="document-title" content="Quarterly Briefing">
  <meta name="document-type" content="memo">
  <meta name="author" content="J. Doe">
</head>
<body>
  <p>Some untagged preamble that is long enough to count as residual body text.</p>
  <div id="intro" data-clearance="INTERNAL"><h2>Intro</h2><p>Welcome to the briefing.</p></div>
  <div data-clearance="CONFIDENTIAL"><p>Budget figures go here.</p></div>
  <span data-clearance="TOP-SECRET">redacted codeword</span>
</body>
</html>`

func TestParseHTMLHappyPath(t *testing.T) {
	doc, err := ParseHTML([]byte(sampleHTML))
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Briefing", doc.Metadata.Title)
	assert.Equal(t, clearance.TopSecret, doc.Metadata.OverallClassification)

	var ids []string
	for _, s := range doc.Sections {
		ids = append(ids, s.SectionID)
	}
	assert.Equal(t, []string{"sec-000", "intro", "sec-002", "sec-003"}, ids)

	assert.Equal(t, TagInline, doc.Sections[3].TagName)
	assert.Equal(t, clearance.TopSecret, doc.Sections[3].Clearance)
}

func TestParseHTMLEmptyDocument(t *testing.T) {
	_, err := ParseHTML([]byte(""))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, EmptyDocument, perr.Kind)
}

func TestParseHTMLUnknownTierOnly(t *testing.T) {
	_, err := ParseHTML([]byte(`<html><body><div data-clearance="BOGUS">x</div></body></html>`))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, UnknownTier, perr.Kind)
}

func TestParseHTMLNoResidualWhenShort(t *testing.T) {
	doc, err := ParseHTML([]byte(`<html><body>hi<div data-clearance="INTERNAL">tagged</div></body></html>`))
	require.NoError(t, err)
	for _, s := range doc.Sections {
		assert.NotEqual(t, "sec-000", s.SectionID)
	}
}
