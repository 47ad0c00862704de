package entity

// ReserveMetrics is the body published at published.reserve.metrics.
type ReserveMetrics struct {
	Allocations      map[string]Amount `json:"allocations"`
	ShortfallBalance *Amount           `json:"shortfallBalance,omitempty"`
	TotalFeeBurned   *Amount           `json:"totalFeeBurned,omitempty"`
	TotalFeeMinted   *Amount           `json:"totalFeeMinted,omitempty"`
}

// PSMMetrics is the body published at published.psm.IST.<instrument>.metrics.
type PSMMetrics struct {
	AnchorPoolBalance   *Amount `json:"anchorPoolBalance,omitempty"`
	MintedPoolBalance   *Amount `json:"mintedPoolBalance,omitempty"`
	FeePoolBalance      *Amount `json:"feePoolBalance,omitempty"`
	TotalAnchorProvided *Amount `json:"totalAnchorProvided,omitempty"`
	TotalMintedProvided *Amount `json:"totalMintedProvided,omitempty"`
}

// Field returns the amount named by the published field name, or nil.
func (m PSMMetrics) Field(name string) *Amount {
	switch name {
	case "anchorPoolBalance":
		return m.AnchorPoolBalance
	case "mintedPoolBalance":
		return m.MintedPoolBalance
	case "feePoolBalance":
		return m.FeePoolBalance
	case "totalAnchorProvided":
		return m.TotalAnchorProvided
	case "totalMintedProvided":
		return m.TotalMintedProvided
	default:
		return nil
	}
}

// VaultRecord is the body published at published.vaultFactory.managers.<m>.vaults.<v>.
type VaultRecord struct {
	Locked       *Amount       `json:"locked,omitempty"`
	VaultState   string        `json:"vaultState"`
	DebtSnapshot *DebtSnapshot `json:"debtSnapshot,omitempty"`
}

// DebtSnapshot is carried by vault records; only the debt amount is read.
type DebtSnapshot struct {
	Debt *Amount `json:"debt,omitempty"`
}

// VbankAssetInfo is one entry value of published.agoricNames.vbankAsset.
type VbankAssetInfo struct {
	Brand        string           `json:"brand"`
	Denom        string           `json:"denom"`
	IssuerName   string           `json:"issuerName"`
	ProposedName string           `json:"proposedName"`
	DisplayInfo  VbankDisplayInfo `json:"displayInfo"`
}

// VbankDisplayInfo holds the display metadata of a vbank asset.
type VbankDisplayInfo struct {
	AssetKind     string `json:"assetKind"`
	DecimalPlaces *int   `json:"decimalPlaces,omitempty"`
}
