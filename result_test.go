package dynip_test

import (
	"net/netip"
	"testing"

	"github.com/Travis-Britz/dynip"
)

func TestClassifyIPUpdate(t *testing.T) {
	tests := map[string]dynip.IPUpdateResult{
		"good 1.2.3.4":                  dynip.UpdateOK,
		"GOOD 1.2.3.4":                  dynip.UpdateOK,
		"nochg 1.2.3.4":                 dynip.UpdateOK,
		"!yours 1.2.3.4":                dynip.UpdateNotYours,
		"badauth":                       dynip.UpdateBadAuth,
		"nohost":                        dynip.UpdateNoHost,
		"dnserr":                        dynip.UpdateDNSErr,
		"911":                           dynip.UpdateDNSErr,
		"notfqdn":                       dynip.UpdateMiscErr,
		"abuse":                         dynip.UpdateMiscErr,
		"numhost":                       dynip.UpdateMiscErr,
		"badagent":                      dynip.UpdateMiscErr,
		"!donator":                      dynip.UpdateMiscErr,
		"The service is not available.": dynip.UpdateNotAvailable,
		"something new":                 dynip.UpdateMiscErr,
		"":                              dynip.UpdateMiscErr,
	}
	for in, expected := range tests {
		if got := dynip.ClassifyIPUpdate(in); got != expected {
			t.Fatalf("ClassifyIPUpdate(%q): Expected %q; got %q", in, expected, got)
		}
	}
}

func TestParseUpdateResponse(t *testing.T) {
	r := dynip.ParseUpdateResponse("good 203.0.113.5\r\n")
	if r.Result != dynip.UpdateOK {
		t.Fatalf("Expected %q; got %q", dynip.UpdateOK, r.Result)
	}
	if expected, got := netip.MustParseAddr("203.0.113.5"), r.Addr; expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
	if expected, got := "good 203.0.113.5", r.Raw; expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}

	r = dynip.ParseUpdateResponse("badauth")
	if r.Result != dynip.UpdateBadAuth || r.Addr.IsValid() {
		t.Fatalf("Expected bad auth without address; got %+v", r)
	}

	r = dynip.ParseUpdateResponse("nochg garbage")
	if r.Result != dynip.UpdateOK || r.Addr.IsValid() {
		t.Fatalf("Expected ok without address; got %+v", r)
	}
}

func TestFormatUpdateTime(t *testing.T) {
	tests := map[int]string{
		-1:   "never",
		0:    "less than a minute",
		1:    "1 minute",
		59:   "59 minutes",
		60:   "1 hr",
		125:  "2 hrs 5 minutes",
		1441: "1 day 1 minute",
		3000: "2 days 2 hrs",
	}
	for in, expected := range tests {
		if got := dynip.FormatUpdateTime(in); got != expected {
			t.Fatalf("FormatUpdateTime(%d): Expected %q; got %q", in, expected, got)
		}
	}
}
