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
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/clearancevault/core/clearance"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// inlineTags is the fixed set the spec uses to classify an element's
// TagName. Everything else tagged with data-clearance is a block section.
var inlineTags = map[string]bool{
	"span": true, "a": true, "strong": true, "em": true,
	"b": true, "i": true, "code": true, "mark": true,
}

const residualTextMinLength = 10

// ParseHTML implements §4.1 parseHtml: every element carrying a
// data-clearance attribute whose value resolves to a canonical tier
// becomes a Section; everything else outside those elements, if long
// enough, becomes a leading sec-000 INTERNAL section.
func ParseHTML(data []byte) (*ParsedDocument, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, newEmptyDocument()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, newMalformedInput(err)
	}

	if doc.Find("body").Length() == 0 && doc.Find("*").Length() == 0 {
		return nil, newEmptyDocument()
	}

	meta := Metadata{SourceFormat: SourceHTML}
	meta.Title = metaContent(doc, "document-title")
	meta.DocType = metaContent(doc, "document-type")
	meta.Author = metaContent(doc, "author")
	meta.CreatedDate = metaContent(doc, "created-date")
	meta.Department = metaContent(doc, "department")

	var warnings *multierror.Error
	var validTierSeen bool
	var invalidValue string

	sections := make([]Section, 0)
	taggedNodes := make(map[*html.Node]bool)

	counter := 0
	doc.Find("[data-clearance]").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		rawTier, _ := sel.Attr("data-clearance")

		if isNestedInTagged(node, taggedNodes) {
			warnings = multierror.Append(warnings,
				fmt.Errorf("nested tagged element processed independently: %s", rawTier))
		}
		taggedNodes[node] = true

		tier, parseErr := clearance.Parse(strings.ToUpper(strings.TrimSpace(rawTier)))
		if parseErr != nil {
			invalidValue = rawTier
			warnings = multierror.Append(warnings, fmt.Errorf("unknown tier %q skipped", rawTier))
			return
		}
		validTierSeen = true

		counter++
		id, _ := sel.Attr("id")
		if id == "" {
			id = fmt.Sprintf("sec-%03d", counter)
		}

		title := sectionTitle(sel)
		tagName := classifyTag(node.Data)
		text := strings.TrimSpace(sel.Text())

		sections = append(sections, Section{
			SectionID:   id,
			Clearance:   tier,
			Title:       title,
			TagName:     tagName,
			TextLength:  len([]rune(text)),
			ContentHash: contentHashPrefix([]byte(text)),
			Content:     []byte(text),
		})
	})

	if !validTierSeen && invalidValue != "" {
		return nil, newUnknownTier(invalidValue)
	}

	residual := residualText(doc, taggedNodes)
	if len([]rune(residual)) >= residualTextMinLength {
		leading := Section{
			SectionID:   "sec-000",
			Clearance:   clearance.Internal,
			Title:       "Residual Content",
			TagName:     TagSection,
			TextLength:  len([]rune(residual)),
			ContentHash: contentHashPrefix([]byte(residual)),
			Content:     []byte(residual),
		}
		sections = append([]Section{leading}, sections...)
	}

	if warnings.ErrorOrNil() != nil {
		log.Warn().Err(warnings).Msg("html section parser warnings")
	}

	parsed := &ParsedDocument{Metadata: meta, Sections: sections}
	parsed.Recompute()
	return parsed, nil
}

func metaContent(doc *goquery.Document, name string) string {
	val, _ := doc.Find(fmt.Sprintf(`meta[name="%s"]`, name)).Attr("content")
	return val
}

func sectionTitle(sel *goquery.Selection) string {
	heading := sel.Find("h1,h2,h3,h4,h5,h6").First()
	if heading.Length() > 0 {
		if text := strings.TrimSpace(heading.Text()); text != "" {
			return text
		}
	}
	if title, ok := sel.Attr("data-title"); ok && strings.TrimSpace(title) != "" {
		return title
	}
	tierVal, _ := sel.Attr("data-clearance")
	tier, err := clearance.Parse(strings.ToUpper(strings.TrimSpace(tierVal)))
	if err != nil {
		return "Section"
	}
	return fmt.Sprintf("%s Section", tier.String())
}

func classifyTag(tag string) TagName {
	if inlineTags[strings.ToLower(tag)] {
		return TagInline
	}
	return TagBlock
}

func isNestedInTagged(node *html.Node, tagged map[*html.Node]bool) bool {
	for p := node.Parent; p != nil; p = p.Parent {
		if tagged[p] {
			return true
		}
	}
	return false
}

// residualText returns the document's plain text with every tagged
// element's subtree removed, so only untagged content remains.
func residualText(doc *goquery.Document, tagged map[*html.Node]bool) string {
	clone := cloneDocument(doc)
	clone.Find("[data-clearance]").Each(func(_ int, sel *goquery.Selection) {
		sel.Remove()
	})
	clone.Find("script,style,meta,head").Remove()
	return strings.TrimSpace(clone.Text())
}

func cloneDocument(doc *goquery.Document) *goquery.Document {
	html, err := doc.Html()
	if err != nil {
		return doc
	}
	clone, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return doc
	}
	return clone
}
