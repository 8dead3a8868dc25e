package sheet

import (
	"encoding/json"
	"sort"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
)

// document is the layout of a sheet snapshot.
type document struct {
	Tokens []Token              `json:"tokens"`
	Stakes map[asset.Name]Stake `json:"stakes"`
}

// Snapshot implements the ledger.Document interface so the sheet can be
// committed with the vault table.
func (s *Sheet) Snapshot() ([]byte, error) {
	tokens := s.Tokens()
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Contract != tokens[j].Contract {
			return tokens[i].Contract < tokens[j].Contract
		}
		return tokens[i].Supply.Symbol.Code < tokens[j].Supply.Symbol.Code
	})

	doc := document{
		Tokens: tokens,
		Stakes: s.Stakes(),
	}

	return json.MarshalIndent(doc, "", "  ")
}

// Restore implements the ledger.Document interface, replacing the content
// of the sheet with the snapshot.
func (s *Sheet) Restore(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	for i := range doc.Tokens {
		if doc.Tokens[i].Balances == nil {
			doc.Tokens[i].Balances = make(map[asset.Name]int64)
		}
	}

	s.Replace(New(doc.Tokens, doc.Stakes))
	return nil
}
