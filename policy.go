package dynip

import (
	"context"
	"errors"
)

// NetworksState records whether the account has a usable network for updates.
// Its string form is what gets persisted.
type NetworksState string

const (
	NetworksOK        NetworksState = "unsok"
	NoNetworks        NetworksState = "unsnonet"
	NoDynamicNetworks NetworksState = "unsnodynip"
	NoNetworkSelected NetworksState = "unnonetsel"
)

func (s NetworksState) Valid() bool {
	switch s {
	case NetworksOK, NoNetworks, NoDynamicNetworks, NoNetworkSelected:
		return true
	}
	return false
}

// Selection is the outcome of choosing a network. Hostname is the network label used as the update target.
type Selection struct {
	State     NetworksState
	Hostname  string
	NetworkID string
}

// NetworkSource fetches the account's networks and can enable dynamic updates on one of them.
// AccountClient.Session returns one.
type NetworkSource interface {
	Networks(ctx context.Context) ([]NetworkInfo, error)
	SetDynamic(ctx context.Context, networkID string, on bool) error
}

// NetworkChooser asks the user to pick one of several dynamic networks.
// It returns false when the user declines to choose.
type NetworkChooser interface {
	ChooseNetwork(ctx context.Context, dynamic []NetworkInfo) (NetworkInfo, bool)
}

type ChooserFunc func(ctx context.Context, dynamic []NetworkInfo) (NetworkInfo, bool)

func (f ChooserFunc) ChooseNetwork(ctx context.Context, dynamic []NetworkInfo) (NetworkInfo, bool) {
	return f(ctx, dynamic)
}

// SelectNetwork decides which network receives IP updates.
//
//   - no networks: NoNetworks
//   - no dynamic networks: the first network is made dynamic through source and selected;
//     if that fails the result is NoDynamicNetworks
//   - one dynamic network: it is selected
//   - several: chooser decides. If the user cancels, prev is kept only when it was working
//     and its hostname still names a dynamic network; otherwise NoNetworkSelected.
//
// A nil chooser behaves like a user who always cancels.
func SelectNetwork(ctx context.Context, nets []NetworkInfo, prev Selection, source NetworkSource, chooser NetworkChooser) Selection {
	if len(nets) == 0 {
		return Selection{State: NoNetworks}
	}

	var dynamic []NetworkInfo
	for _, n := range nets {
		if n.Dynamic {
			dynamic = append(dynamic, n)
		}
	}

	switch len(dynamic) {
	case 0:
		first := nets[0]
		if source == nil {
			return Selection{State: NoDynamicNetworks}
		}
		if err := source.SetDynamic(ctx, first.ID, true); err != nil {
			return Selection{State: NoDynamicNetworks}
		}
		return selected(first)
	case 1:
		return selected(dynamic[0])
	}

	if chooser != nil {
		if n, ok := chooser.ChooseNetwork(ctx, dynamic); ok {
			return selected(n)
		}
	}
	if prev.State == NetworksOK && prev.Hostname != "" {
		if _, ok := FindDynamicWithLabel(nets, prev.Hostname); ok {
			return prev
		}
	}
	return Selection{State: NoNetworkSelected}
}

func selected(n NetworkInfo) Selection {
	return Selection{State: NetworksOK, Hostname: n.Label, NetworkID: n.ID}
}

// RefreshNetworks downloads the networks and runs SelectNetwork on them.
// An account without networks is a NoNetworks selection, not an error.
// On any other error prev is returned unchanged along with the error.
func RefreshNetworks(ctx context.Context, source NetworkSource, prev Selection, chooser NetworkChooser) (Selection, error) {
	nets, err := source.Networks(ctx)
	if errors.Is(err, ErrNoNetworks) {
		return Selection{State: NoNetworks}, nil
	}
	if err != nil {
		return prev, err
	}
	return SelectNetwork(ctx, nets, prev, source, chooser), nil
}
