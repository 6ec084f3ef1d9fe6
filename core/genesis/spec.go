package genesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
)

// GenesisSpec seeds an empty ledger with balances and registered assets.
type GenesisSpec struct {
	Alloc  map[string]uint64 `toml:"alloc"` // addr -> balance
	Assets []AssetSpec       `toml:"assets"`

	accounts []Allocation
}

// AssetSpec registers one mint. Either ID (64 hex chars) or Label must be
// set; a label is hashed into the mint id.
type AssetSpec struct {
	ID           string        `toml:"id"`
	Label        string        `toml:"label"`
	Owner        string        `toml:"owner"`
	SellerFeeBps uint16        `toml:"sellerFeeBps"`
	Creators     []CreatorSpec `toml:"creators"`

	asset    crypto.AssetID
	owner    crypto.Address
	creators []settlement.Creator
}

type CreatorSpec struct {
	Address string `toml:"address"`
	Share   uint8  `toml:"share"`
}

// Allocation is a parsed alloc entry.
type Allocation struct {
	Account crypto.Address
	Amount  uint64
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	var spec GenesisSpec
	meta, err := toml.DecodeFile(path, &spec)
	if err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode genesis spec %q: unknown field %q", path, undecoded[0].String())
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// ParseGenesisSpec decodes a spec from TOML text.
func ParseGenesisSpec(data string) (*GenesisSpec, error) {
	var spec GenesisSpec
	meta, err := toml.Decode(data, &spec)
	if err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode genesis spec: unknown field %q", undecoded[0].String())
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec: %w", err)
	}
	return &spec, nil
}

// Accounts returns the allocations sorted by address.
func (s *GenesisSpec) Accounts() []Allocation {
	return append([]Allocation(nil), s.accounts...)
}

func (s *GenesisSpec) validate() error {
	s.accounts = s.accounts[:0]
	for raw, amount := range s.Alloc {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", raw, err)
		}
		if amount == 0 {
			return fmt.Errorf("alloc %q: amount must be positive", raw)
		}
		s.accounts = append(s.accounts, Allocation{Account: addr, Amount: amount})
	}
	sort.Slice(s.accounts, func(i, j int) bool {
		return s.accounts[i].Account.Compare(s.accounts[j].Account) < 0
	})
	for i := 1; i < len(s.accounts); i++ {
		if s.accounts[i].Account == s.accounts[i-1].Account {
			return fmt.Errorf("alloc: duplicate account %s", s.accounts[i].Account)
		}
	}

	seen := make(map[crypto.AssetID]struct{}, len(s.Assets))
	for i := range s.Assets {
		a := &s.Assets[i]
		if err := a.validate(); err != nil {
			return fmt.Errorf("asset[%d]: %w", i, err)
		}
		if _, ok := seen[a.asset]; ok {
			return fmt.Errorf("asset[%d]: duplicate asset %s", i, a.asset)
		}
		seen[a.asset] = struct{}{}
	}
	return nil
}

func (a *AssetSpec) validate() error {
	id, label := strings.TrimSpace(a.ID), strings.TrimSpace(a.Label)
	switch {
	case id != "" && label != "":
		return fmt.Errorf("id and label are mutually exclusive")
	case id != "":
		parsed, err := crypto.ParseAssetID(id)
		if err != nil {
			return err
		}
		a.asset = parsed
	case label != "":
		a.asset = crypto.NewAssetID([]byte(label))
	default:
		return fmt.Errorf("id or label must be provided")
	}
	owner, err := crypto.ParseAddress(a.Owner)
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	a.owner = owner
	if a.SellerFeeBps > settlement.BasisPoints {
		return fmt.Errorf("sellerFeeBps must be <= %d", settlement.BasisPoints)
	}
	a.creators = make([]settlement.Creator, 0, len(a.Creators))
	for j, c := range a.Creators {
		addr, err := crypto.ParseAddress(c.Address)
		if err != nil {
			return fmt.Errorf("creator[%d]: %w", j, err)
		}
		a.creators = append(a.creators, settlement.Creator{Address: addr, Share: c.Share})
	}
	return nil
}

// Asset returns the mint id the entry registers.
func (a *AssetSpec) Asset() crypto.AssetID { return a.asset }
