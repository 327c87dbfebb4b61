package domain

type Product struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Price       Price   `json:"price"`
	Category    string  `json:"category,omitempty"`
	Weight      *Weight `json:"weight,omitempty"`
	Inventory   int     `json:"inventory"`
	Description string  `json:"description,omitempty"`
}

type InventoryAdjustment struct {
	Delta int `json:"delta"`
}
