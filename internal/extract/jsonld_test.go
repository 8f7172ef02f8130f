package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseJSONLDGraphWrapper(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
<script type="application/ld+json">
{"@context": "https://schema.org", "@graph": [
	{"@type": "WebSite", "name": "store"},
	{"@type": "Product", "name": "ปั๊มน้ำอัตโนมัติ", "sku": "WP-1100",
	 "offers": {"@type": "Offer", "price": 4590, "priceCurrency": "THB"}}
]}
</script>
</head><body></body></html>`)

	ld := parseJSONLD(doc)
	require.NotNil(t, ld)
	assert.Equal(t, "ปั๊มน้ำอัตโนมัติ", ld.Name)
	assert.Equal(t, "WP-1100", ld.SKU)
	assert.Equal(t, 4590.0, ld.Price)
	assert.Equal(t, "THB", ld.Currency)
}

func TestParseJSONLDArrayRoot(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
<script type="application/ld+json">
[{"@type": "Organization", "name": "store"},
 {"@type": "Product", "name": "สายยางรดน้ำ 20 เมตร"}]
</script>
</head><body></body></html>`)

	ld := parseJSONLD(doc)
	require.NotNil(t, ld)
	assert.Equal(t, "สายยางรดน้ำ 20 เมตร", ld.Name)
}

func TestParseJSONLDAggregateOffer(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
<script type="application/ld+json">
{"@type": "Product", "name": "กระเบื้องแกรนิตโต้",
 "offers": [{"@type": "AggregateOffer", "lowPrice": "325.00", "highPrice": "419.00", "priceCurrency": "THB"}]}
</script>
</head><body></body></html>`)

	ld := parseJSONLD(doc)
	require.NotNil(t, ld)
	assert.Equal(t, 325.0, ld.Price, "lowPrice stands in when no price field exists")
	assert.Equal(t, 419.0, ld.OriginalPrice)
}

func TestParseJSONLDBrandForms(t *testing.T) {
	tests := []struct {
		name     string
		brand    string
		expected string
	}{
		{
			name:     "Brand as string",
			brand:    `"brand": "TOA",`,
			expected: "TOA",
		},
		{
			name:     "Brand as object",
			brand:    `"brand": {"@type": "Brand", "name": "COTTO"},`,
			expected: "COTTO",
		},
		{
			name:     "Brand missing",
			brand:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docFromHTML(t, `<html><head>
<script type="application/ld+json">
{"@type": "Product", `+tt.brand+` "name": "x product"}
</script>
</head><body></body></html>`)

			ld := parseJSONLD(doc)
			require.NotNil(t, ld)
			assert.Equal(t, tt.expected, ld.Brand)
		})
	}
}

func TestParseJSONLDSkipsBrokenBlocks(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
<script type="application/ld+json">{not valid json</script>
<script type="application/ld+json">{"@type": "Product", "name": "ตลับเมตร 5 เมตร"}</script>
</head><body></body></html>`)

	ld := parseJSONLD(doc)
	require.NotNil(t, ld)
	assert.Equal(t, "ตลับเมตร 5 เมตร", ld.Name)
}

func TestParseJSONLDBreadcrumbs(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		expected []string
	}{
		{
			name: "Names on the list items",
			script: `{"@type": "BreadcrumbList", "itemListElement": [
				{"@type": "ListItem", "position": 1, "name": "หน้าแรก"},
				{"@type": "ListItem", "position": 2, "name": "ห้องครัว"},
				{"@type": "ListItem", "position": 3, "name": "ซิงค์ล้างจาน"}
			]}`,
			expected: []string{"หน้าแรก", "ห้องครัว", "ซิงค์ล้างจาน"},
		},
		{
			name: "Names nested in item",
			script: `{"@type": "BreadcrumbList", "itemListElement": [
				{"@type": "ListItem", "item": {"@id": "/", "name": "หน้าแรก"}},
				{"@type": "ListItem", "item": {"@id": "/tools", "name": "เครื่องมือช่าง"}}
			]}`,
			expected: []string{"หน้าแรก", "เครื่องมือช่าง"},
		},
		{
			name: "Breadcrumbs inside a graph",
			script: `{"@graph": [
				{"@type": "WebPage", "name": "page"},
				{"@type": "BreadcrumbList", "itemListElement": [
					{"@type": "ListItem", "name": "หน้าแรก"},
					{"@type": "ListItem", "name": "สวนและต้นไม้"}
				]}
			]}`,
			expected: []string{"หน้าแรก", "สวนและต้นไม้"},
		},
		{
			name:     "No breadcrumb list",
			script:   `{"@type": "Product", "name": "x"}`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docFromHTML(t, `<html><head>
<script type="application/ld+json">`+tt.script+`</script>
</head><body></body></html>`)

			assert.Equal(t, tt.expected, parseJSONLDBreadcrumbs(doc))
		})
	}
}
