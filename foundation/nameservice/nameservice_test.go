package nameservice_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardanlabs/blockgraph/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const addr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestLookup(t *testing.T) {
	dir := t.TempDir()

	labels := `{"` + strings.ToLower(addr) + `": "exchange"}`
	if err := os.WriteFile(filepath.Join(dir, "labels.json"), []byte(labels), 0o600); err != nil {
		t.Fatalf("Should be able to write labels: %s", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}
	if err := crypto.SaveECDSA(filepath.Join(dir, "kennedy.ecdsa"), key); err != nil {
		t.Fatalf("Should be able to save a key: %s", err)
	}
	kennedy := crypto.PubkeyToAddress(key.PublicKey).Hex()

	t.Log("Given the need to label addresses.")
	{
		ns, err := nameservice.New(dir, "0x0")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the name service: %s", failed, err)
		}

		t.Logf("\tTest 0:\tWhen looking up known addresses.")
		{
			if got := ns.Lookup(addr); got != "exchange" {
				t.Fatalf("\t%s\tTest 0:\tShould ignore address case, got %q.", failed, got)
			}
			if got := ns.Lookup(strings.ToLower(kennedy)); got != "kennedy" {
				t.Fatalf("\t%s\tTest 0:\tShould name key files after the file, got %q.", failed, got)
			}
			if got := ns.Lookup("0x0"); got != nameservice.BurnName {
				t.Fatalf("\t%s\tTest 0:\tShould label the burn address, got %q.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould resolve every known address.", success)
		}

		t.Logf("\tTest 1:\tWhen looking up an unknown address.")
		{
			if got := ns.Lookup("C"); got != "C" {
				t.Fatalf("\t%s\tTest 1:\tShould return the address unchanged, got %q.", failed, got)
			}
			t.Logf("\t%s\tTest 1:\tShould return the address unchanged.", success)
		}

		t.Logf("\tTest 2:\tWhen copying the names.")
		{
			cpy := ns.Copy()
			delete(cpy, "0x0")
			if ns.Len() != 3 || ns.Lookup("0x0") != nameservice.BurnName {
				t.Fatalf("\t%s\tTest 2:\tShould not share the map, got %d names.", failed, ns.Len())
			}
			t.Logf("\t%s\tTest 2:\tShould not share the map.", success)
		}
	}
}

func TestNewNoRoot(t *testing.T) {
	t.Log("Given the need to run without label files.")
	{
		ns, err := nameservice.New("", "0x0")
		if err != nil || ns.Len() != 1 {
			t.Fatalf("\t%s\tShould hold only the burn label: %v", failed, err)
		}
		t.Logf("\t%s\tShould hold only the burn label.", success)

		if _, err := nameservice.New(filepath.Join(t.TempDir(), "missing"), "0x0"); err == nil {
			t.Fatalf("\t%s\tShould fail on a missing root.", failed)
		}
		t.Logf("\t%s\tShould fail on a missing root.", success)
	}
}
