package dynip

import (
	"net/netip"
	"strings"
)

// IPUpdateResult classifies the provider's reply to an IP update.
type IPUpdateResult int

const (
	UpdateOK IPUpdateResult = iota
	UpdateNotYours
	UpdateBadAuth
	UpdateNotAvailable
	UpdateNoHost
	UpdateDNSErr
	UpdateMiscErr
)

func (r IPUpdateResult) String() string {
	switch r {
	case UpdateOK:
		return "ok"
	case UpdateNotYours:
		return "not yours"
	case UpdateBadAuth:
		return "bad auth"
	case UpdateNotAvailable:
		return "not available"
	case UpdateNoHost:
		return "no host"
	case UpdateDNSErr:
		return "dns error"
	default:
		return "error"
	}
}

// Checked in order; the first matching prefix wins.
var updateResultPrefixes = []struct {
	prefix string
	result IPUpdateResult
}{
	{"the service is not available", UpdateNotAvailable},
	{"good", UpdateOK},
	{"nochg", UpdateOK},
	{"!yours", UpdateNotYours},
	{"badauth", UpdateBadAuth},
	{"nohost", UpdateNoHost},
	{"dnserr", UpdateDNSErr},
	{"911", UpdateDNSErr},
	{"abuse", UpdateMiscErr},
	{"notfqdn", UpdateMiscErr},
	{"numhost", UpdateMiscErr},
	{"badagent", UpdateMiscErr},
	{"!donator", UpdateMiscErr},
}

// ClassifyIPUpdate maps the plain-text reply of the update endpoint to a result.
// Matching is a case-insensitive prefix match. Unrecognized text is UpdateMiscErr.
func ClassifyIPUpdate(s string) IPUpdateResult {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range updateResultPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			return p.result
		}
	}
	return UpdateMiscErr
}

// UpdateResponse is a classified reply from the update endpoint.
type UpdateResponse struct {
	Result IPUpdateResult
	// Addr is the address echoed back by "good <ip>", "nochg <ip>" and "!yours <ip>" replies.
	Addr netip.Addr
	Raw  string
}

func ParseUpdateResponse(raw string) UpdateResponse {
	raw = strings.TrimSpace(raw)
	r := UpdateResponse{Result: ClassifyIPUpdate(raw), Raw: raw}
	if r.Result != UpdateOK && r.Result != UpdateNotYours {
		return r
	}
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return r
	}
	if addr, err := netip.ParseAddr(fields[1]); err == nil {
		r.Addr = addr
	}
	return r
}
