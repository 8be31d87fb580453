package domain

// Balance is credits and liabilities of one asset.
type Balance struct {
	Credits     int64 `json:"credits"`
	Liabilities int64 `json:"liabilities"`
}

// MarginPosition: what is borrowed against what.
type MarginPosition struct {
	Asset Balance `json:"asset"`
	Quote Balance `json:"quote"`
}

// UserAccount combines the spot balances and margin positions of one account.
type UserAccount struct {
	Kind    string                    `json:"kind"`
	Spot    map[string]int64          `json:"spot"`
	Margins map[string]MarginPosition `json:"margins"`
}

// UserInventory is the full holdings of one user across accounts.
type UserInventory struct {
	Accounts map[int64]UserAccount `json:"accounts"`
	IsMM     bool                  `json:"is_mm"`
}
