// Package nameservice maps addresses to display names for tooltips. Names are
// read from JSON label files and from the file names of ECDSA key files.
package nameservice

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
)

// BurnName is the label of the burn address.
const BurnName = "burn"

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	names map[string]string
}

// New constructs a name service with the burn address and the labels found
// under root. Root may be a single .json file, a directory holding .json and
// .ecdsa files, or empty for the burn label only.
func New(root string, burnAddress string) (*NameService, error) {
	ns := NameService{
		names: map[string]string{
			Normalize(burnAddress): BurnName,
		},
	}

	if root == "" {
		return &ns, nil
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		switch filepath.Ext(fileName) {
		case ".json":
			return ns.loadJSON(fileName)
		case ".ecdsa":
			return ns.loadKey(fileName)
		}

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	return &ns, nil
}

// loadJSON reads an object of address to name pairs.
func (ns *NameService) loadJSON(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}

	var labels map[string]string
	if err := json.Unmarshal(data, &labels); err != nil {
		return fmt.Errorf("decoding %s: %w", fileName, err)
	}

	for address, name := range labels {
		ns.names[Normalize(address)] = name
	}

	return nil
}

// loadKey names the address of a private key after its file.
func (ns *NameService) loadKey(fileName string) error {
	privateKey, err := crypto.LoadECDSA(fileName)
	if err != nil {
		return fmt.Errorf("loading %s: %w", fileName, err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	ns.names[address.Hex()] = strings.TrimSuffix(filepath.Base(fileName), ".ecdsa")

	return nil
}

// Lookup returns the name for the specified address. Unknown addresses are
// returned unchanged.
func (ns *NameService) Lookup(address string) string {
	name, exists := ns.names[Normalize(address)]
	if !exists {
		return address
	}
	return name
}

// Len returns the number of known names.
func (ns *NameService) Len() int {
	return len(ns.names)
}

// Copy returns a copy of the map of addresses and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.names))
	for address, name := range ns.names {
		cpy[address] = name
	}
	return cpy
}

// Normalize returns the checksummed form of a hex address so lookups ignore
// case. Anything else is returned unchanged.
func Normalize(address string) string {
	if !common.IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}
