package domain

// Market is the per-book metadata. The decimal counts fix how human decimal
// prices and quantities map onto the scaled integers used everywhere on the
// wire.
type Market struct {
	AssetID              AssetIdentifier `json:"asset_id"`
	BookPriceDecimals    int             `json:"book_price_decimals"`
	BookQuantityDecimals int             `json:"book_quantity_decimals"`
}
