package recon

import (
	"context"
	"strings"
)

// Instrument is the reference data held for a security.
type Instrument struct {
	ID           string  `json:"id" yaml:"id"`
	AssetClass   string  `json:"asset_class" yaml:"asset_class"`
	Currency     string  `json:"currency" yaml:"currency"`
	ToleranceBps float64 `json:"tolerance_bps,omitempty" yaml:"tolerance_bps"`
	LotSize      float64 `json:"lot_size,omitempty" yaml:"lot_size"`
}

// Account is the reference data held for a book or custody account.
type Account struct {
	ID        string `json:"id" yaml:"id"`
	Desk      string `json:"desk" yaml:"desk"`
	Custodian string `json:"custodian" yaml:"custodian"`
	Region    string `json:"region" yaml:"region"`
}

// Counterparty is the reference data held for a trading counterparty.
type Counterparty struct {
	ID     string `json:"id" yaml:"id"`
	LEI    string `json:"lei" yaml:"lei"`
	Rating string `json:"rating" yaml:"rating"`
}

// Reference answers enrichment lookups. Implementations must be safe for
// concurrent use.
type Reference interface {
	Instrument(ctx context.Context, id string) (Instrument, bool)
	Account(ctx context.Context, id string) (Account, bool)
	Counterparty(ctx context.Context, id string) (Counterparty, bool)
}

// StaticReference is a read-only Reference backed by maps keyed by
// upper-cased ID. Populate it before first use.
type StaticReference struct {
	Instruments    map[string]Instrument
	Accounts       map[string]Account
	Counterparties map[string]Counterparty
}

var _ Reference = (*StaticReference)(nil)

func (r *StaticReference) Instrument(_ context.Context, id string) (Instrument, bool) {
	v, ok := r.Instruments[strings.ToUpper(id)]
	return v, ok
}

func (r *StaticReference) Account(_ context.Context, id string) (Account, bool) {
	v, ok := r.Accounts[strings.ToUpper(id)]
	return v, ok
}

func (r *StaticReference) Counterparty(_ context.Context, id string) (Counterparty, bool) {
	v, ok := r.Counterparties[strings.ToUpper(id)]
	return v, ok
}

// DefaultReference returns the built-in reference data set.
func DefaultReference() *StaticReference {
	return &StaticReference{
		Instruments: map[string]Instrument{
			"AAPL":         {ID: "AAPL", AssetClass: "EQUITY", Currency: "USD", LotSize: 1},
			"MSFT":         {ID: "MSFT", AssetClass: "EQUITY", Currency: "USD", LotSize: 1},
			"GOOGL":        {ID: "GOOGL", AssetClass: "EQUITY", Currency: "USD", LotSize: 1},
			"VOD.L":        {ID: "VOD.L", AssetClass: "EQUITY", Currency: "GBP", LotSize: 1},
			"US912828XG55": {ID: "US912828XG55", AssetClass: "FIXED_INCOME", Currency: "USD", ToleranceBps: 2},
			"EURUSD":       {ID: "EURUSD", AssetClass: "FX", Currency: "USD", ToleranceBps: 2},
			"ESZ6":         {ID: "ESZ6", AssetClass: "DERIVATIVE", Currency: "USD", ToleranceBps: 1, LotSize: 1},
		},
		Accounts: map[string]Account{
			"ACC-001": {ID: "ACC-001", Desk: "EQUITY_CASH", Custodian: "STATE_STREET", Region: "US"},
			"ACC-002": {ID: "ACC-002", Desk: "RATES", Custodian: "BNY_MELLON", Region: "US"},
			"ACC-003": {ID: "ACC-003", Desk: "EMEA_EQUITY", Custodian: "EUROCLEAR", Region: "EU"},
		},
		Counterparties: map[string]Counterparty{
			"GS":   {ID: "GS", LEI: "784F5XWPLTWKTBV3E584", Rating: "A+"},
			"MS":   {ID: "MS", LEI: "IGJSJL3JD5P30I6NJZ34", Rating: "A+"},
			"JPM":  {ID: "JPM", LEI: "8I5DZWZKVSZI1NUHU748", Rating: "AA-"},
			"CITI": {ID: "CITI", LEI: "MBNUM2BPBDO7JBLYG310", Rating: "A"},
		},
	}
}
