// Package genesis loads the initial state of a node from a YAML file.
package genesis

import (
	"fmt"
	"os"

	"github.com/ruteri/envelope-registry/algorithms"
	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/ruteri/envelope-registry/membership"
	"gopkg.in/yaml.v2"
)

// Genesis is the initial state. Params and Algorithms only take effect on an
// empty store; afterwards the committed values win.
//
//	authority: "0x..."
//	params:
//	  max_recipients_per_envelope: 100
//	  max_keys_per_account: 5
//	  allowed_algorithms: [x25519-chacha20]
//	  require_signature: false
//	algorithms: []        # defaults to the built-in catalog
//	validators: ["0x..."]
//	committee: ["0x..."]
type Genesis struct {
	Authority  string                           `yaml:"authority"`
	Params     interfaces.Params                `yaml:"params"`
	Algorithms []interfaces.AlgorithmDescriptor `yaml:"algorithms"`
	Validators []string                         `yaml:"validators"`
	Committee  []string                         `yaml:"committee"`
}

// Default returns a single-node genesis with no authority and every
// non-deprecated built-in algorithm allowed.
func Default() *Genesis {
	g := &Genesis{
		Params: interfaces.Params{
			MaxRecipientsPerEnvelope: 100,
			MaxKeysPerAccount:        5,
		},
		Algorithms: algorithms.DefaultCatalog(),
	}
	for _, d := range g.Algorithms {
		if !d.Deprecated {
			g.Params.AllowedAlgorithms = append(g.Params.AllowedAlgorithms, d.ID)
		}
	}
	return g
}

// Load reads and validates a genesis file.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Genesis, error) {
	var g Genesis
	if err := yaml.UnmarshalStrict(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis: %w", err)
	}
	if len(g.Algorithms) == 0 {
		g.Algorithms = algorithms.DefaultCatalog()
	}
	if err := g.Params.Validate(); err != nil {
		return nil, err
	}
	if _, err := g.AuthorityAddress(); err != nil {
		return nil, err
	}
	if _, err := g.Membership(); err != nil {
		return nil, err
	}
	return &g, nil
}

// AuthorityAddress returns the zero address if no authority is configured.
func (g *Genesis) AuthorityAddress() (interfaces.Address, error) {
	if g.Authority == "" {
		return interfaces.Address{}, nil
	}
	addr, err := interfaces.NewAddressFromHex(g.Authority)
	if err != nil {
		return interfaces.Address{}, fmt.Errorf("genesis authority: %w", err)
	}
	return addr, nil
}

// Membership returns a static membership source holding the genesis validators
// and committee.
func (g *Genesis) Membership() (*membership.Static, error) {
	validators, err := parseAddresses("validators", g.Validators)
	if err != nil {
		return nil, err
	}
	committee, err := parseAddresses("committee", g.Committee)
	if err != nil {
		return nil, err
	}
	return membership.NewStatic(validators, committee), nil
}

func parseAddresses(field string, hexAddrs []string) ([]interfaces.Address, error) {
	res := make([]interfaces.Address, 0, len(hexAddrs))
	for i, s := range hexAddrs {
		addr, err := interfaces.NewAddressFromHex(s)
		if err != nil {
			return nil, fmt.Errorf("genesis %s[%d]: %w", field, i, err)
		}
		res = append(res, addr)
	}
	return res, nil
}
