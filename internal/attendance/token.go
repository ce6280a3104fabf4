package attendance

import (
	"encoding/json"
	"net/url"
	"strings"
)

// qrPayload covers the JSON shapes emitted by camera-scan surfaces.
type qrPayload struct {
	Token   string `json:"token"`
	QRToken string `json:"qr_token"`
}

// NormalizeToken reduces a raw scanned payload to the canonical opaque token.
// Capture surfaces differ: a camera scan may deliver the bare token or a JSON
// wrapper, while a deep link delivers a verification URL with a token query
// parameter. Returns "" when no token can be extracted.
func NormalizeToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if strings.HasPrefix(raw, "{") {
		var p qrPayload
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			if p.Token != "" {
				return p.Token
			}
			if p.QRToken != "" {
				return p.QRToken
			}
		}
		return ""
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		return u.Query().Get("token")
	}

	return raw
}
