package dynip

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"
)

// NetworkInfo is one network registered with the account.
type NetworkInfo struct {
	ID        string
	IPAddress netip.Addr
	Label     string
	Dynamic   bool
}

type networkJSON struct {
	IPAddress *string `json:"ip_address"`
	Label     *string `json:"label"`
	Dynamic   *bool   `json:"dynamic"`
}

// parseNetworks decodes the networks_get response object, keyed by network id,
// keeping the networks in the order the server sent them.
func parseNetworks(raw json.RawMessage) ([]NetworkInfo, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: networks is not an object", ErrMalformedResponse)
	}

	var nets []NetworkInfo
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
		}
		id, _ := tok.(string)

		var n networkJSON
		if err := dec.Decode(&n); err != nil {
			return nil, fmt.Errorf("%w: network %s: %s", ErrMalformedResponse, id, err)
		}
		if n.IPAddress == nil {
			return nil, fmt.Errorf("%w: network %s: missing ip_address", ErrMalformedResponse, id)
		}
		if n.Dynamic == nil {
			return nil, fmt.Errorf("%w: network %s: missing dynamic", ErrMalformedResponse, id)
		}
		ni := NetworkInfo{ID: id, Dynamic: *n.Dynamic}
		if n.Label != nil {
			ni.Label = *n.Label
		}
		// the server reports networks that have never been seen with an empty address
		if *n.IPAddress != "" {
			if ni.IPAddress, err = netip.ParseAddr(*n.IPAddress); err != nil {
				return nil, fmt.Errorf("%w: network %s: %s", ErrMalformedResponse, id, err)
			}
		}
		nets = append(nets, ni)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	return nets, nil
}

// DynamicNetworksCount counts the dynamic networks, optionally only those with a label.
func DynamicNetworksCount(nets []NetworkInfo, onlyLabeled bool) int {
	n := 0
	for _, ni := range nets {
		if !ni.Dynamic {
			continue
		}
		if onlyLabeled && ni.Label == "" {
			continue
		}
		n++
	}
	return n
}

// FindFirstDynamic returns the first dynamic network in server order.
func FindFirstDynamic(nets []NetworkInfo) (NetworkInfo, bool) {
	for _, ni := range nets {
		if ni.Dynamic {
			return ni, true
		}
	}
	return NetworkInfo{}, false
}

// FindDynamicWithLabel returns the dynamic network labeled label, compared case-insensitively.
func FindDynamicWithLabel(nets []NetworkInfo, label string) (NetworkInfo, bool) {
	if label == "" {
		return NetworkInfo{}, false
	}
	for _, ni := range nets {
		if ni.Dynamic && strings.EqualFold(ni.Label, label) {
			return ni, true
		}
	}
	return NetworkInfo{}, false
}
