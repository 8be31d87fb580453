package domain

import "github.com/spooky-finn/go-exchange-client/helpers"

// AssetIdentifier names a tradeable asset. The wire form is {"Index": n}; the
// plain index is used in REST paths and stream topics.
type AssetIdentifier struct {
	Index int64 `json:"Index"`
}

func NewAssetIdentifier(index int64) AssetIdentifier {
	return AssetIdentifier{Index: index}
}

func (a AssetIdentifier) String() string {
	return helpers.IntToString(a.Index)
}
