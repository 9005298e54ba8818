// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bibtex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBib = `
@article{keynes1930treatise,
  title   = {A Treatise on Money},
  author  = {Keynes, John Maynard and Robinson, Joan},
  journal = {Economic Journal},
  year    = {1930},
  doi     = {10.1234/treatise},
  keywords = {monetary theory, macroeconomics}
}

@inproceedings{smith2020,
  title     = {A Study of Widgets},
  author    = {Smith, Jane},
  booktitle = {Proceedings of WidgetCon},
  year      = {2020}
}
`

func TestParse_ReturnsAllEntries(t *testing.T) {
	entries, err := Parse(sampleBib)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "article", entries[0].Type)
	assert.Equal(t, "keynes1930treatise", entries[0].Key)
	assert.Equal(t, "A Treatise on Money", entries[0].Field("title"))
	assert.Equal(t, "Economic Journal", entries[0].Field("journal"))

	assert.Equal(t, "inproceedings", entries[1].Type)
	assert.Equal(t, "smith2020", entries[1].Key)
}

func TestParse_SkipsMalformedEntry(t *testing.T) {
	data := `@article{bad, title = {Missing closing brace`
	entries, err := Parse(data)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParse_HandlesNestedBraces(t *testing.T) {
	data := `@article{nested, title = {A {Special} Title}, year = {2021}}`
	entries, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A Special Title", entries[0].Field("title"))
}

func TestSplitAuthors(t *testing.T) {
	got := SplitAuthors("Keynes, John Maynard and Robinson, Joan")
	assert.Equal(t, []string{"John Maynard Keynes", "Joan Robinson"}, got)
}

func TestSplitAuthors_Empty(t *testing.T) {
	assert.Nil(t, SplitAuthors(""))
}

func TestSplitAuthors_NoCommaPassesThrough(t *testing.T) {
	got := SplitAuthors("John Maynard Keynes")
	assert.Equal(t, []string{"John Maynard Keynes"}, got)
}

func TestSplitKeywords(t *testing.T) {
	got := SplitKeywords("monetary theory, macroeconomics; business cycles")
	assert.Equal(t, []string{"monetary theory", "macroeconomics", "business cycles"}, got)
}

func TestEntryToFields_Article(t *testing.T) {
	entries, err := Parse(sampleBib)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	fields, err := entries[0].ToFields()
	require.NoError(t, err)

	assert.Equal(t, "A Treatise on Money", fields.Title)
	require.NotNil(t, fields.Year)
	assert.Equal(t, 1930, *fields.Year)
	assert.Equal(t, "10.1234/treatise", fields.DOI)
	assert.Equal(t, "journal-article", fields.EntryType)
	assert.Equal(t, "Economic Journal", fields.Container)
	assert.Equal(t, []string{"John Maynard Keynes", "Joan Robinson"}, fields.Authors)
	assert.Equal(t, []string{"monetary theory", "macroeconomics"}, fields.Keywords)
	assert.NotEmpty(t, fields.EntryJSON)
}

func TestEntryToFields_InproceedingsUsesBooktitleAsContainer(t *testing.T) {
	entries, err := Parse(sampleBib)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	fields, err := entries[1].ToFields()
	require.NoError(t, err)

	assert.Equal(t, "proceedings-article", fields.EntryType)
	assert.Equal(t, "Proceedings of WidgetCon", fields.Container)
}

func TestEntryToFields_UnknownTypePassesThrough(t *testing.T) {
	entries, err := Parse(`@unusualtype{k1, title = {Something}}`)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	fields, err := entries[0].ToFields()
	require.NoError(t, err)
	assert.Equal(t, "unusualtype", fields.EntryType)
	assert.Nil(t, fields.Year)
}
