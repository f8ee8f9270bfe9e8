package doctree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html><head><title>The Week in Chess 1500</title></head>
<body>
<h2>1) Norway Chess 2023</h2>
<p>Magnus Carlsen won again in Stavanger after a long and tense final round.</p>
<ul class="tourn_details first">
  <li class="Event">Norway Chess 2023</li>
  <li class="Place">Stavanger</li>
</ul>
<h2>2) Biel Festival</h2>
<table class="results-table">
  <tr><th>Games</th> <th>Section</th></tr>
  <tr><td>Norway Chess 2023</td><td>30</td></tr>
</table>
</body></html>`

func TestParseAndQuery(t *testing.T) {
	root, err := Parse(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "html", root.Tag())

	headings := root.FindAll("h2")
	require.Len(t, headings, 2)
	assert.Equal(t, "1) Norway Chess 2023", CleanText(headings[0]))

	next := headings[0].NextSibling()
	require.NotNil(t, next)
	assert.Equal(t, "p", next.Tag())

	ul := next.NextSibling()
	require.NotNil(t, ul)
	assert.True(t, ul.HasClass("tourn_details"))
	assert.True(t, ul.HasClass("first"))
	assert.False(t, ul.HasClass("tourn"))

	place := ul.Find("li", "Place")
	require.NotNil(t, place)
	assert.Equal(t, "Stavanger", place.Text())
	assert.Nil(t, ul.Find("li", "NAT"))

	table := root.Find("table", "results-table")
	require.NotNil(t, table)
	rows := table.FindAll("tr")
	require.Len(t, rows, 2)
	assert.Len(t, rows[1].Children(), 2)
}

func TestFindMatchesDescendantsOnly(t *testing.T) {
	root, err := Parse(strings.NewReader(page))
	require.NoError(t, err)

	ul := root.Find("ul", "first")
	require.NotNil(t, ul)
	assert.Empty(t, ul.FindAll("ul"), "a node is not its own descendant")
	assert.Len(t, ul.FindAll("li"), 2)

	assert.Nil(t, root.Find("ul", "missing"))
	assert.Nil(t, root.Find("li", "9bad"), "invalid selectors match nothing")
	assert.Empty(t, root.FindAll("h2["))
}

func TestLastSiblingIsNil(t *testing.T) {
	root, err := Parse(strings.NewReader(page))
	require.NoError(t, err)
	table := root.Find("table", "results-table")
	require.NotNil(t, table)
	assert.Nil(t, table.NextSibling())
}

func TestTitle(t *testing.T) {
	title, err := Title(strings.NewReader(page), "")
	require.NoError(t, err)
	assert.Contains(t, title, "Week in Chess 1500")
}

func TestElementTree(t *testing.T) {
	h := E("h2", "", "3) Biel")
	ul := E("ul", "tourn_details",
		E("li", "Event", "Biel Masters"),
		E("li", "NAT", "SUI"),
	)
	root := E("body", "", h, ul, E("h2", "", "4) Other"))

	assert.Len(t, root.FindAll("h2"), 2)
	assert.Equal(t, ul, h.NextSibling())
	assert.Equal(t, "SUI", ul.Find("li", "NAT").Text())
	assert.Nil(t, ul.Find("li", "Place"))
	assert.Equal(t, "Biel MastersSUI", ul.Text())
	assert.Nil(t, root.NextSibling())
	assert.Len(t, ul.Children(), 2)
}

func TestParseLegacyEncoding(t *testing.T) {
	doc := "<html><head><meta charset=\"windows-1252\"></head><body><h2>Caf\xe9 Open</h2></body></html>"
	root, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "Café Open", CleanText(root.Find("h2", "")))
}
