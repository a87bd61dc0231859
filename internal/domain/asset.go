package domain

import "strings"

// AssetID identifies a fungible token, e.g. "TOKENA-a1b2c3".
type AssetID string

// Address identifies a principal (provider, caller, owner or the contract itself).
type Address string

const (
	minTickerLen  = 3
	maxTickerLen  = 10
	randSuffixLen = 6
)

// IsValidAssetID reports whether id has the fungible-token identifier shape:
// an uppercase alphanumeric ticker of 3-10 characters, a dash, and six
// lowercase hex characters.
func IsValidAssetID(id AssetID) bool {
	s := string(id)
	dash := strings.IndexByte(s, '-')
	if dash < minTickerLen || dash > maxTickerLen {
		return false
	}
	ticker, suffix := s[:dash], s[dash+1:]
	if len(suffix) != randSuffixLen {
		return false
	}
	for i := 0; i < len(ticker); i++ {
		c := ticker[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	for i := 0; i < len(suffix); i++ {
		c := suffix[i]
		if !(c >= 'a' && c <= 'f') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// Ticker returns the part before the dash, or the whole id when malformed.
func (id AssetID) Ticker() string {
	s := string(id)
	if dash := strings.IndexByte(s, '-'); dash > 0 {
		return s[:dash]
	}
	return s
}

// ESDTValidator is the default AssetValidator.
type ESDTValidator struct{}

// IsValidAsset implements AssetValidator.
func (ESDTValidator) IsValidAsset(id AssetID) bool {
	return IsValidAssetID(id)
}
