package models

import "strings"

// Retailer identifies one of the tracked stores. ID is the short code
// used as the database key ("twd", "hp", ...).
type Retailer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// Retailer short codes, used as database keys and dispatch tags.
const (
	RetailerThaiWatsadu = "twd"
	RetailerHomePro     = "hp"
	RetailerMegaHome    = "mgh"
	RetailerDoHome      = "dh"
	RetailerBoonthavorn = "btv"
	RetailerGlobalHouse = "gbh"
)

// BaseRetailerID is the retailer whose catalog anchors all comparisons.
const BaseRetailerID = RetailerThaiWatsadu

var KnownRetailers = []Retailer{
	{ID: RetailerThaiWatsadu, Name: "Thai Watsadu", Domain: "thaiwatsadu.com"},
	{ID: RetailerHomePro, Name: "HomePro", Domain: "homepro.co.th"},
	{ID: RetailerMegaHome, Name: "MegaHome", Domain: "megahome.co.th"},
	{ID: RetailerDoHome, Name: "Do Home", Domain: "dohome.co.th"},
	{ID: RetailerBoonthavorn, Name: "Boonthavorn", Domain: "boonthavorn.com"},
	{ID: RetailerGlobalHouse, Name: "Global House", Domain: "globalhouse.co.th"},
}

// RetailerByID looks up a known retailer by its short code.
func RetailerByID(id string) (Retailer, bool) {
	for _, r := range KnownRetailers {
		if r.ID == id {
			return r, true
		}
	}
	return Retailer{}, false
}

// RetailerByDomain matches a hostname against the known retailer domains.
// Subdomains like www.thaiwatsadu.com resolve to the same retailer.
func RetailerByDomain(host string) (Retailer, bool) {
	host = strings.ToLower(host)
	for _, r := range KnownRetailers {
		if host == r.Domain || strings.HasSuffix(host, "."+r.Domain) {
			return r, true
		}
	}
	return Retailer{}, false
}

// RetailerByName matches a display name, case-insensitively and ignoring
// spaces, so "Do Home", "dohome" and "DoHome" all resolve.
func RetailerByName(name string) (Retailer, bool) {
	want := strings.ReplaceAll(strings.ToLower(name), " ", "")
	for _, r := range KnownRetailers {
		if strings.ReplaceAll(strings.ToLower(r.Name), " ", "") == want {
			return r, true
		}
	}
	return Retailer{}, false
}
