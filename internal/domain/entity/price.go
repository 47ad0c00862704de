package entity

// PriceQuote is the resolved USD price of one collateral type.
// Available is false when the oracle returned no price; that is not an error.
type PriceQuote struct {
	Symbol    CollateralType `json:"symbol"`
	FeedID    string         `json:"feedId"`
	USDPrice  float64        `json:"usdPrice"`
	Available bool           `json:"available"`
}
