package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Strips HTML tags",
			input:    `<div><b>สว่านไฟฟ้า</b> MAKITA</div>`,
			expected: "สว่านไฟฟ้า MAKITA",
		},
		{
			name:     "Decodes entities",
			input:    "Bosch &amp; Makita&nbsp;รุ่นใหม่",
			expected: "Bosch & Makita รุ่นใหม่",
		},
		{
			name:     "Collapses whitespace",
			input:    "  ประตู   HDF\n\tบานเรียบ  ",
			expected: "ประตู HDF บานเรียบ",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestSanitizeField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "Clean Thai value passes",
			input:    "เหล็กเคลือบกันสนิม",
			maxLen:   100,
			expected: "เหล็กเคลือบกันสนิม",
		},
		{
			name:     "CSS class junk removed",
			input:    `class="quickInfo-infoValue-NpP" ขาว`,
			maxLen:   100,
			expected: "ขาว",
		},
		{
			name:     "URL contamination rejected",
			input:    "https://www.thaiwatsadu.com/th/product/123",
			maxLen:   100,
			expected: "",
		},
		{
			name:     "JSON fragment removed",
			input:    `{"color":"red"} น้ำเงิน`,
			maxLen:   100,
			expected: "น้ำเงิน",
		},
		{
			name:     "Thai length counted in runes not bytes",
			input:    "กระเบื้องเซรามิกลายหินอ่อน",
			maxLen:   30,
			expected: "กระเบื้องเซรามิกลายหินอ่อน",
		},
		{
			name:     "Over cap rejected",
			input:    "กระเบื้องเซรามิกลายหินอ่อน",
			maxLen:   10,
			expected: "",
		},
		{
			name:     "Single character rejected",
			input:    "x",
			maxLen:   100,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeField(tt.input, tt.maxLen))
		})
	}
}

func TestIsValidSKU(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"Numeric SKU", "60272160", true},
		{"Alphanumeric with dash", "VL-8803", true},
		{"Too short", "12", false},
		{"No digits", "ABCDEF", false},
		{"URL fragment", "thaiwatsadu.com/p/123", false},
		{"Contains slash", "a/b123", false},
		{"Date string", "2024-01-15", false},
		{"Thai characters", "สินค้า123", false},
		{"Long EAN", "8852163012022", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidSKU(tt.input))
		})
	}
}

func TestSanitizeColor(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Thai color", "ขาว", "ขาว"},
		{"Hex code rejected", "#FF0000", ""},
		{"RGB rejected", "rgb(255, 0, 0)", ""},
		{"CSS color property stripped", "color: red; ดำ", "ดำ"},
		{"Mixed hex and name", "#fff ครีม", "ครีม"},
		{"Too short", "ก", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeColor(tt.input))
		})
	}
}

func TestSanitizeDimensions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Triple dimension", "ขนาด 60 x 120 x 4 ซม.", "60 x 120 x 4"},
		{"Double dimension", "30x60 cm", "30x60"},
		{"Unicode times sign", "60 × 120 × 4", "60 × 120 × 4"},
		{"CSS var stripped", "var(--spacing) 50 x 50", "50 x 50"},
		{"Single number", "ยาว 200 ซม.", "200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeDimensions(tt.input))
		})
	}
}

func TestSanitizeModel(t *testing.T) {
	assert.Equal(t, "HP1630", SanitizeModel("HP1630"))
	assert.Equal(t, "", SanitizeModel("div"), "HTML element names are not models")
	assert.Equal(t, "", SanitizeModel("span"))
	assert.Equal(t, "NO-2000", SanitizeModel("NO-2000"))
}

func TestSanitizeMaterial(t *testing.T) {
	assert.Equal(t, "เหล็ก CR-V", SanitizeMaterial("วัสดุ: เหล็ก CR-V"))
	assert.Equal(t, "ไม้สัก", SanitizeMaterial("Material: ไม้สัก"))
	assert.Equal(t, "", SanitizeMaterial(""))
}
