package domain

const AddressTypeShipping = "shipping"

type Address struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Division  string `json:"division"`
	Type      string `json:"type"`
	IsDefault bool   `json:"isDefault"`
}

// NewAddress is the payload of POST addresses.
type NewAddress struct {
	UserID    int64  `json:"userId"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Division  string `json:"division"`
	Type      string `json:"type"`
	IsDefault bool   `json:"isDefault"`
}
