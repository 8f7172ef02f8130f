package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMegaHomeFullProductPage(t *testing.T) {
	html := `<html><body>
	<div class="breadcrumb">
		<a class="section" href="/">หน้าแรก</a>
		<a class="section" href="/c/furniture">เฟอร์นิเจอร์</a>
		<a class="section" href="/c/shelf">ชั้นวางของ</a>
	</div>
	<div class="prd-brand"><a href="/brand/index">INDEX</a></div>
	<div class="prd-name"><h1>ชั้นวางของ 4 ชั้น สีน้ำตาล NO.SH-440</h1></div>
	<div class="discount-price"><span class="amount">1,290</span></div>
	<div class="original-price"><span class="amount">1,590</span></div>
	<img id="image-index-0" src="https://cdn.megahome.co.th/img/sh440-1.jpg">
	<img id="image-index-1" src="https://cdn.megahome.co.th/img/sh440-2.jpg">
	<table><tbody>
		<tr class="pdp-HT_WIDTH"><td>ความกว้าง</td><td>60</td></tr>
		<tr class="pdp-HT_DEPTH"><td>ความลึก</td><td>30</td></tr>
		<tr class="pdp-HT_HEIGHT"><td>ความสูง</td><td>140</td></tr>
		<tr class="pdp-HT_MATERIAL"><td>วัสดุ</td><td>ไม้ปาร์ติเกิล</td></tr>
		<tr class="pdp-HT_WEIGHT"><td>น้ำหนัก</td><td>12.5</td></tr>
	</tbody></table>
</body></html>`

	e := NewMegaHomeExtractor()
	p, err := e.Extract(html, "https://www.megahome.co.th/p/509123")
	require.NoError(t, err)

	assert.Equal(t, "MegaHome", p.Retailer)
	assert.Equal(t, "509123", p.SKU)
	assert.Equal(t, "ชั้นวางของ 4 ชั้น สีน้ำตาล NO.SH-440", p.Name)
	assert.Equal(t, "INDEX", p.Brand)
	assert.Equal(t, "SH-440", p.Model, "NO. prefix in the name carries the model")
	assert.Equal(t, "สีน้ำตาล", p.Color)
	assert.Equal(t, "ชั้นวางของ", p.Category)
	assert.Equal(t, "60 x 30 x 140 cm", p.Dimensions)
	assert.Equal(t, "ไม้ปาร์ติเกิล", p.Material)
	assert.Equal(t, "12.5 kg", p.Volume)
	require.NotNil(t, p.CurrentPrice)
	assert.Equal(t, 1290.0, *p.CurrentPrice)
	require.NotNil(t, p.OriginalPrice)
	assert.Equal(t, 1590.0, *p.OriginalPrice)
	assert.Len(t, p.Images, 2)
}

func TestMegaHomeGtmPriceFallback(t *testing.T) {
	html := `<html><body>
	<div class="prd-name"><h1>ไขควงชุด 30 ชิ้น</h1></div>
	<input id="gtmPrice-332211" value="159.0">
</body></html>`

	e := NewMegaHomeExtractor()
	p, err := e.Extract(html, "https://www.megahome.co.th/p/332211")
	require.NoError(t, err)

	require.NotNil(t, p.CurrentPrice)
	assert.Equal(t, 159.0, *p.CurrentPrice)
	assert.Nil(t, p.OriginalPrice)
}

func TestMegaHomeModelFromName(t *testing.T) {
	tests := []struct {
		name     string
		heading  string
		expected string
	}{
		{
			name:     "NO dot prefix",
			heading:  "ชั้นวางของ NO.888",
			expected: "888",
		},
		{
			name:     "Run prefix",
			heading:  "พัดลมตั้งพื้น รุ่น F-1688",
			expected: "F-1688",
		},
		{
			name:     "No model",
			heading:  "ตู้เก็บของ อเนกประสงค์",
			expected: "",
		},
	}

	e := NewMegaHomeExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := `<html><body><div class="prd-name"><h1>` + tt.heading + `</h1></div>` +
				`<input id="gtmPrice-1" value="99.0"></body></html>`

			p, err := e.Extract(html, "https://www.megahome.co.th/p/1")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Model)
		})
	}
}

func TestMegaHomeNoProductData(t *testing.T) {
	html := `<html><body><div class="not-found">ไม่พบหน้าที่ค้นหา</div></body></html>`

	e := NewMegaHomeExtractor()
	_, err := e.Extract(html, "https://www.megahome.co.th/p/999999")
	assert.Error(t, err)
}
