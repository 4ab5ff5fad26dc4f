package label

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const Other = "Other"

// Table maps submitter addresses to chain labels. Lookups are case-insensitive.
type Table struct {
	byAddress map[string]string
}

var defaultLabels = map[string][]string{
	"Base":        {"0x5050f69a9786f081509234f1a7f4684b5e5b76c9", "0xff00000000000000000000000000000000008453"},
	"Optimism":    {"0x6887246668a3b87f54deb3b94ba47a6f63f32985"},
	"Arbitrum":    {"0xc1b634853cb333d3ad8663715b08f41a3aec47cc", "0xa4b10ac61e79ea1e150df70b8dda53391928fd14", "0xa4b1e63cb4901e327597bc35d36fe8a23e4c253f"},
	"Scroll":      {"0xa1e4380a3b1f749673e270229993ee55f35663b4", "0xcf2898225ed05be911d3709d9417e86e0b4cfc8f", "0x4f250b05262240c787a1ee222687c6ec395c628a", "0xb4a04505a487fcf16232d74ebb76429e232b1f21", "0x054a47b9e2a22af6c0ce55020238c8fecd7d334b"},
	"Starknet":    {"0x415c8893d514f9bc5211d36eeda4183226b84aa7", "0x2c169dfe5fbba12957bdd0ba47d9cedbfe260ca7"},
	"Swell Chain": {"0xeb18ea5dedee42e7af378991dfeb719d21c17b4c"},
	"Zircuit":     {"0xaf1e4f6a47af647f87c0ec814d8032c4a4bff145"},
	"zkSync Era":  {"0xa9268341831efa4937537bc3e9eb36dbece83c7e", "0x3dB52cE065f728011Ac6732222270b3F2360d919"},
	"Linea":       {"0xd19d4b5d358258f05d7b411e21a1460d11b0876f", "0xc70ae19b5feaa5c19f576e621d2bad9771864fe2"},
	"Hemi":        {"0x65115c6d23274e0a29a63b69130efe901aa52e7a"},
	"Taiko":       {"0x77b064f418b27167bd8c6f263a16455e628b56cb", "0xfc3756dc89ee98b049c1f2b0c8e69f0649e5c3e3"},
	"Abstract":    {"0x4b2d036d2c27192549ad5a2f2d9875e1843833de"},
	"World":       {"0xdbbe3d8c2d2b22a2611c5a94a9a12c2fcd49eb29"},
	"Ink":         {"0x500d7ea63cf2e501dadaa5feec1fc19fe2aa72ac"},
	"Blast":       {"0x98a986ee08bf67c9cfc4de2aaaff2d7f56c0bc47"},
	"Zora":        {"0x625726c858dbf78c0125436c943bf4b4be9d9033"},
	"Mode":        {"0x99199a22125034c808ff20f377d91187e8050f2e"},
	"Mantle":      {"0xd1328c9167e0693b689b5aa5a024379d4e437858"},
	"Metal":       {"0xc94c243f8fb37223f3eb77f1e6d55e0f8f9caef4", "0xc94c243f8fb37223f3eb2f7961f7072602a51b8b"},
	"Cyber":       {"0x3c11c3025ce387d76c2eddf1493ec55a8cc2a0f7"},
	"Kroma":       {"0x41b8cd6791de4d8f9e0eda9f185ce1898f0b5b3b"},
	"Redstone":    {"0xa8cd7f4c94eb0f15a5d8f5e9f9b4eb9b2e3eb60d"},
	"Fraxtal":     {"0x7f9d9c1bce1062e1077845ea39a0303429600a06"},
	"Mint":        {"0xd6c24e78cc77e48c87c246a2e0b7d21ffb7c1c0a"},
	"Soneium":     {"0x6776be80dbada6a02b5f2095cf13734ac303b8d1"},
	"Lighter":     {"0xfbc0dcd6c3518cb529bc1b585db992a7d40005fa"},
	"UniChain":    {"0x2f60a5184c63ca94f82a27100643dbabe4f3f7fd"},
	"Katana":      {"0x1ffda89c755f6d4af069897d77ccabb580fd412a"},
	"Codex":       {"0xb5bd290ef8ef3840cb866c7a8b7cc9e45fde3ab9"},
}

func NewTable(labels map[string][]string) *Table {
	t := &Table{byAddress: make(map[string]string)}
	t.merge(labels)
	return t
}

// Default returns the built-in table of known rollup batch submitters.
func Default() *Table {
	return NewTable(defaultLabels)
}

// LoadFile reads a YAML document of label -> addresses and merges it over the built-in table.
// An empty path returns the built-in table.
func LoadFile(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label file %s: %w", path, err)
	}
	labels := make(map[string][]string)
	if err = yaml.Unmarshal(content, &labels); err != nil {
		return nil, fmt.Errorf("parse label file %s: %w", path, err)
	}
	t.merge(labels)
	return t, nil
}

func (t *Table) merge(labels map[string][]string) {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, addr := range labels[name] {
			t.byAddress[normalize(addr)] = name
		}
	}
}

// Lookup returns the label of address, Other when unknown.
func (t *Table) Lookup(address string) string {
	if name, ok := t.byAddress[normalize(address)]; ok {
		return name
	}
	return Other
}

func (t *Table) Len() int {
	return len(t.byAddress)
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
