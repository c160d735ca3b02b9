// Package prefs stores the account settings: who is signed in, which network receives updates,
// and whether updates are enabled.
//
// The file is a flat JSON object of strings. Values equal to their default are not written,
// and the token is obfuscated (not encrypted) at rest.
package prefs

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Travis-Britz/dynip"
	"github.com/google/uuid"
)

const (
	keyUserName      = "user_name"
	keyUniqueID      = "unique_id"
	keyToken         = "token"
	keyHostname      = "hostname"
	keyNetworksState = "user_networks_state"
	keySendUpdates   = "send_updates"
	keyNetworkID     = "network_id"
)

var table = []struct {
	key       string
	def       string
	obfuscate bool
}{
	{keyUserName, "", false},
	{keyUniqueID, "", false},
	{keyToken, "", true},
	{keyHostname, "", false},
	{keyNetworksState, "", false},
	{keySendUpdates, "1", false},
	{keyNetworkID, "", false},
}

// Prefs is safe for concurrent use. It implements dynip.Account.
type Prefs struct {
	path string

	mu   sync.Mutex
	vals map[string]string
}

var _ dynip.Account = (*Prefs)(nil)

// Load reads the prefs file at path. A missing file yields defaults.
// An existing file must not be readable by other users.
func Load(path string) (*Prefs, error) {
	vals, err := read(path)
	if err != nil {
		return nil, err
	}
	return &Prefs{path: path, vals: vals}, nil
}

// Reload replaces the in-memory values with the file's current contents,
// picking up changes saved by another process. On error the values are unchanged.
func (p *Prefs) Reload() error {
	vals, err := read(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.vals = vals
	p.mu.Unlock()
	return nil
}

func read(path string) (map[string]string, error) {
	vals := defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return vals, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	if err := VerifyPermissions(path); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prefs %s: %w", path, err)
	}
	for _, e := range table {
		s, ok := raw[e.key].(string)
		if !ok {
			continue
		}
		if e.obfuscate {
			if s, err = Deobfuscate(s); err != nil {
				return nil, fmt.Errorf("prefs %s: bad %s: %w", path, e.key, err)
			}
		}
		vals[e.key] = s
	}
	return vals, nil
}

func defaults() map[string]string {
	m := make(map[string]string, len(table))
	for _, e := range table {
		m[e.key] = e.def
	}
	return m
}

// Save writes the prefs file atomically with mode 0600.
func (p *Prefs) Save() error {
	p.mu.Lock()
	out := map[string]string{}
	for _, e := range table {
		v := p.vals[e.key]
		if v == e.def {
			continue
		}
		if e.obfuscate {
			v = Obfuscate(v)
		}
		out[e.key] = v
	}
	p.mu.Unlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	defer os.Remove(f.Name())
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(f.Name(), p.path); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func (p *Prefs) Path() string { return p.path }

func (p *Prefs) get(k string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vals[k]
}

func (p *Prefs) set(kv ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i+1 < len(kv); i += 2 {
		p.vals[kv[i]] = kv[i+1]
	}
}

func (p *Prefs) UserName() string  { return p.get(keyUserName) }
func (p *Prefs) Token() string     { return p.get(keyToken) }
func (p *Prefs) Hostname() string  { return p.get(keyHostname) }
func (p *Prefs) UniqueID() string  { return p.get(keyUniqueID) }
func (p *Prefs) NetworkID() string { return p.get(keyNetworkID) }

func (p *Prefs) NetworksState() dynip.NetworksState {
	return dynip.NetworksState(p.get(keyNetworksState))
}

// SendUpdates reports whether the user has left IP updates enabled.
// Anything other than "0" counts as enabled.
func (p *Prefs) SendUpdates() bool { return p.get(keySendUpdates) != "0" }

func (p *Prefs) SetSendUpdates(on bool) {
	v := "1"
	if !on {
		v = "0"
	}
	p.set(keySendUpdates, v)
}

// SetAccount records a successful sign-in. The network selection is cleared
// because it belonged to the previous account.
func (p *Prefs) SetAccount(userName, token string) {
	p.set(
		keyUserName, userName,
		keyToken, token,
		keyHostname, "",
		keyNetworkID, "",
		keyNetworksState, "",
	)
}

// SignOut forgets the account but keeps the unique id.
func (p *Prefs) SignOut() { p.SetAccount("", "") }

func (p *Prefs) Selection() dynip.Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dynip.Selection{
		State:     dynip.NetworksState(p.vals[keyNetworksState]),
		Hostname:  p.vals[keyHostname],
		NetworkID: p.vals[keyNetworkID],
	}
}

func (p *Prefs) ApplySelection(s dynip.Selection) {
	p.set(
		keyNetworksState, string(s.State),
		keyHostname, s.Hostname,
		keyNetworkID, s.NetworkID,
	)
}

// EnsureUniqueID generates the installation id on first use.
// It reports whether a new id was created.
func (p *Prefs) EnsureUniqueID() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vals[keyUniqueID] != "" {
		return false
	}
	id := uuid.New()
	p.vals[keyUniqueID] = strings.ToUpper(hex.EncodeToString(id[:]))
	return true
}

// CanSendIPUpdates implements dynip.Account.
func (p *Prefs) CanSendIPUpdates() bool { return p.Why() == "" }

// Why explains which precondition for sending IP updates is missing,
// or returns "" when updates can be sent.
func (p *Prefs) Why() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.vals[keyUserName] == "":
		return "not signed in: no user name"
	case p.vals[keyToken] == "":
		return "not signed in: no token"
	}
	switch dynip.NetworksState(p.vals[keyNetworksState]) {
	case dynip.NetworksOK:
		return ""
	case dynip.NoNetworks:
		return "the account has no networks"
	case dynip.NoDynamicNetworks:
		return "no network is enabled for dynamic IP updates"
	case dynip.NoNetworkSelected:
		return "no network selected"
	default:
		return "networks have not been downloaded"
	}
}

// Obfuscate hides s from casual inspection: every byte is XORed with 0xAB
// and the result is hex encoded.
func Obfuscate(s string) string {
	b := []byte(s)
	for i := range b {
		b[i] ^= 0xab
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

func Deobfuscate(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	for i := range b {
		b[i] ^= 0xab
	}
	return string(b), nil
}

// VerifyPermissions checks that path is readable only by its owner.
func VerifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}
