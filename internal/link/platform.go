package link

import (
	"net/url"
	"regexp"

	"github.com/antonminaichev/cashback-ledger/internal/types/link"
)

var platformPatterns = []struct {
	re       *regexp.Regexp
	platform link.Platform
}{
	{regexp.MustCompile(`(?i)shopee\.(vn|co\.id|com\.my|ph|sg|co\.th)`), link.PlatformShopee},
	{regexp.MustCompile(`(?i)lazada\.(vn|co\.id|com\.my|com\.ph|sg|co\.th)`), link.PlatformLazada},
	{regexp.MustCompile(`(?i)tiktok(shop)?\.(com|vn)`), link.PlatformTikTok},
	{regexp.MustCompile(`(?i)tiki\.vn`), link.PlatformTiki},
}

// DetectPlatform matches the URL host against the supported shops.
func DetectPlatform(u *url.URL) (link.Platform, bool) {
	for _, p := range platformPatterns {
		if p.re.MatchString(u.Host) {
			return p.platform, true
		}
	}
	return "", false
}

// ParseURL accepts absolute http and https URLs only.
func ParseURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}
