package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Query string stripped",
			input:    "https://www.homepro.co.th/p/246513?src=search&pos=2",
			expected: "https://www.homepro.co.th/p/246513",
		},
		{
			name:     "Trailing slash stripped",
			input:    "https://www.homepro.co.th/p/246513/",
			expected: "https://www.homepro.co.th/p/246513",
		},
		{
			name:     "Fragment stripped",
			input:    "https://www.megahome.co.th/p/509123#reviews",
			expected: "https://www.megahome.co.th/p/509123",
		},
		{
			name:     "Host lowercased",
			input:    "https://WWW.DOHOME.CO.TH/product/shelf-10026550",
			expected: "https://www.dohome.co.th/product/shelf-10026550",
		},
		{
			name:     "Bare host with slash",
			input:    "https://www.boonthavorn.com/",
			expected: "https://www.boonthavorn.com",
		},
		{
			name:     "Already normal",
			input:    "https://www.boonthavorn.com/vinyl/vl-8803",
			expected: "https://www.boonthavorn.com/vinyl/vl-8803",
		},
		{
			name:     "Relative path falls back to string trimming",
			input:    "/th/product/door/?a=1",
			expected: "/th/product/door",
		},
		{
			name:     "Empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeURL(tt.input))
		})
	}
}

func TestNormalizeURLUnifiesEncodedForms(t *testing.T) {
	// The same Thai product path spelled raw and percent-encoded must map
	// to one link identity.
	raw := NormalizeURL("https://www.thaiwatsadu.com/th/product/ประตู-60272160")
	encoded := NormalizeURL("https://www.thaiwatsadu.com/th/product/%E0%B8%9B%E0%B8%A3%E0%B8%B0%E0%B8%95%E0%B8%B9-60272160")

	assert.Equal(t, raw, encoded)
}
