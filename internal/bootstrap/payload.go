// Package bootstrap loads and persists the account payload this daemon is
// seeded with: login info plus the device and product lists exported from
// the vendor account. The local copy is authoritative; an optional S3
// mirror allows restoring it on fresh hosts.
package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"aidotbridge/aidot"
)

const SchemaVersion = 1

var ErrPayloadNotFound = errors.New("bootstrap payload not found")

// Payload is the persisted bootstrap data.
type Payload struct {
	SchemaVersion int             `json:"schema_version"`
	LoginInfo     aidot.LoginInfo `json:"login_info"`
	Devices       []aidot.Device  `json:"device_list"`
	Products      []aidot.Product `json:"product_list"`
}

func (p Payload) Validate() error {
	if p.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema_version: %d", p.SchemaVersion)
	}
	if len(p.LoginInfo) == 0 {
		return fmt.Errorf("payload missing login_info")
	}
	if len(p.Devices) == 0 {
		return fmt.Errorf("payload has no devices")
	}
	return nil
}

func Decode(data []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, fmt.Errorf("decode bootstrap: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return Payload{}, err
	}
	return payload, nil
}

// LoadFile reads the payload from the local state file. The file carries
// account tokens, so it must be private to the daemon's user.
func LoadFile(path string) (Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Payload{}, ErrPayloadNotFound
		}
		return Payload{}, fmt.Errorf("read bootstrap: %w", err)
	}
	if err := checkFile(path); err != nil {
		return Payload{}, err
	}
	return Decode(data)
}

// WriteFile persists the payload locally with 0600 permissions.
func WriteFile(path string, payload Payload) error {
	if payload.SchemaVersion == 0 {
		payload.SchemaVersion = SchemaVersion
	}
	if err := ensureParent(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bootstrap: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir bootstrap dir: %w", err)
	}
	return nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0o600 {
		return fmt.Errorf("bootstrap file %s must have 0600 permissions", path)
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if int(stat.Uid) != os.Geteuid() {
			return fmt.Errorf("bootstrap file %s must be owned by uid %d", path, os.Geteuid())
		}
	}
	return nil
}
