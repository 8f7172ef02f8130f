package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	entityRepl   = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'")
	cssJunkRes   []*regexp.Regexp
	urlJunkRes   []*regexp.Regexp
	jsonJunkRes  []*regexp.Regexp
	structChars  = regexp.MustCompile(`[{}\[\]"',:;\\<>]`)
	validSKURe   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	digitRe      = regexp.MustCompile(`\d`)
	dateSKURe    = regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}$`)
	hexColorRe   = regexp.MustCompile(`^[0-9a-fA-F]{3,6}$`)
	cssColorRes  []*regexp.Regexp
	cssVarRe     = regexp.MustCompile(`var\([^)]+\)`)
	dimPickRes   []*regexp.Regexp
	materialPref = regexp.MustCompile(`(?i)วัสดุ\s*[:\s]*|Material\s*[:\s]*|ผลิตจาก\s*[:\s]*|เนื้อวัสดุ\s*[:\s]*`)
)

func init() {
	for _, p := range []string{
		`class="[^"]*"`,
		`quickInfo-infoLabel-[^"\s]*`,
		`quickInfo-infoValue-[^"\s]*`,
		`style="[^"]*"`,
		`id="[^"]*"`,
		`(?i)</?label[^>]*>`,
		`(?i)</?span[^>]*>`,
		`(?i)</?div[^>]*>`,
	} {
		cssJunkRes = append(cssJunkRes, regexp.MustCompile(p))
	}
	for _, p := range []string{
		`https?://[^\s<>"']+`,
		`www\.[^\s<>"']+`,
		`[a-zA-Z0-9.-]+\.(?:com|co\.th|net|org|io)(?:/[^\s<>"']*)?`,
	} {
		urlJunkRes = append(urlJunkRes, regexp.MustCompile(p))
	}
	for _, p := range []string{
		`\{[^}]*\}`,
		`\[[^\]]*\]`,
		`"[^"]*"\s*:\s*"[^"]*"`,
		`(?i)\b(?:true|false|null)\b`,
		`\d{4}-\d{2}-\d{2}[T\s]\d{2}:\d{2}:\d{2}`,
	} {
		jsonJunkRes = append(jsonJunkRes, regexp.MustCompile(p))
	}
	for _, p := range []string{
		`#[0-9a-fA-F]{3,6}`,
		`rgba?\([^)]+\)`,
		`hsla?\([^)]+\)`,
		`(?i)color:\s*[^;\\]+`,
		`(?i)background:\s*[^;\\]+`,
		`var\([^)]+\)`,
	} {
		cssColorRes = append(cssColorRes, regexp.MustCompile(p))
	}
	for _, p := range []string{
		`\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?`,
		`\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?`,
		`\d+(?:\.\d+)?`,
	} {
		dimPickRes = append(dimPickRes, regexp.MustCompile(p))
	}
}

// CleanText strips HTML tags, decodes common entities and collapses
// whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = tagRe.ReplaceAllString(s, " ")
	s = entityRepl.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// SanitizeField scrubs CSS classes, URLs and JSON fragments that leak out
// of rendered markup, then enforces a length cap. Returns "" when nothing
// usable remains.
func SanitizeField(s string, maxLen int) string {
	if s == "" {
		return ""
	}

	for _, re := range cssJunkRes {
		s = re.ReplaceAllString(s, "")
	}
	for _, re := range urlJunkRes {
		s = re.ReplaceAllString(s, "")
	}
	for _, re := range jsonJunkRes {
		s = re.ReplaceAllString(s, "")
	}

	s = structChars.ReplaceAllString(s, "")
	s = strings.TrimRight(s, ",;")
	s = strings.Join(strings.Fields(s), " ")

	// Length caps are in characters, not bytes, so Thai text is not
	// penalized three to one.
	if n := utf8.RuneCountInString(s); n <= 1 || n > maxLen {
		return ""
	}
	lower := strings.ToLower(s)
	for _, prefix := range []string{"http", "www", "data:", "class=", "style="} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}
	if strings.ContainsAny(s, `{}[]"'\<>=`) {
		return ""
	}

	return strings.TrimSpace(s)
}

// SanitizeSKU validates a candidate SKU, rejecting URL fragments and
// date-like strings.
func SanitizeSKU(s string) string {
	s = SanitizeField(s, 50)
	if !IsValidSKU(s) {
		return ""
	}
	return s
}

// IsValidSKU reports whether a string looks like a retailer article code:
// alphanumeric with dashes or underscores, 3 to 50 characters, containing
// at least one digit.
func IsValidSKU(s string) bool {
	if len(s) < 3 || len(s) > 50 {
		return false
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http") || strings.HasPrefix(lower, "www") {
		return false
	}
	for _, frag := range []string{".com", ".co.th", ".net", ".org", "/product/", "/item/", "/category/", "/search/", "/page/"} {
		if strings.Contains(lower, frag) {
			return false
		}
	}
	if strings.ContainsAny(s, `/\`) {
		return false
	}
	if dateSKURe.MatchString(s) {
		return false
	}

	return validSKURe.MatchString(s) && digitRe.MatchString(s)
}

// SanitizeColor scrubs CSS color codes out of a color value.
func SanitizeColor(s string) string {
	if s == "" {
		return ""
	}

	for _, re := range cssColorRes {
		s = re.ReplaceAllString(s, "")
	}
	s = strings.Join(strings.Fields(s), " ")

	s = SanitizeField(s, 50)
	if s == "" || utf8.RuneCountInString(s) < 2 {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "#") || strings.HasPrefix(lower, "rgb") || strings.HasPrefix(lower, "hsl") {
		return ""
	}
	if hexColorRe.MatchString(s) {
		return ""
	}

	return s
}

// SanitizeDimensions extracts the measurement core ("60 x 120 x 4") out of
// a dimensions value before falling back to general scrubbing.
func SanitizeDimensions(s string) string {
	if s == "" {
		return ""
	}

	s = cssVarRe.ReplaceAllString(s, "")

	for _, re := range dimPickRes {
		if m := re.FindString(s); m != "" {
			m = strings.TrimSpace(m)
			if len(m) <= 200 {
				return m
			}
		}
	}

	return SanitizeField(s, 200)
}

// SanitizeMaterial drops label prefixes ("วัสดุ:", "Material:") before
// general scrubbing.
func SanitizeMaterial(s string) string {
	if s == "" {
		return ""
	}

	s = materialPref.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	s = SanitizeField(s, 100)
	if utf8.RuneCountInString(s) < 2 {
		return ""
	}
	return s
}

// SanitizeBrand scrubs a brand value.
func SanitizeBrand(s string) string {
	return SanitizeField(s, 100)
}

// SanitizeModel rejects HTML element names that selector-based extraction
// sometimes captures.
func SanitizeModel(s string) string {
	s = SanitizeField(s, 50)
	if s == "" {
		return ""
	}

	switch strings.ToLower(s) {
	case "html", "body", "div", "span", "section", "article", "header", "footer":
		return ""
	}
	return s
}
