package dto

// CreateItemRequest binds multipart forms (with an image file) and JSON.
type CreateItemRequest struct {
	Title               string `form:"title" json:"title"`
	PricePerUnit        string `form:"pricePerUnit" json:"pricePerUnit"`
	MaxQuantityPerOrder int    `form:"maxQuantityPerOrder" json:"maxQuantityPerOrder"`
	Category            string `form:"category" json:"category"`
	Description         string `form:"description" json:"description"`
	IsActive            *bool  `form:"isActive" json:"isActive"`
}

// UpdateItemRequest is a partial update; absent fields stay unchanged.
type UpdateItemRequest struct {
	Title               *string `json:"title"`
	PricePerUnit        *string `json:"pricePerUnit"`
	MaxQuantityPerOrder *int    `json:"maxQuantityPerOrder"`
	Category            *string `json:"category"`
	Description         *string `json:"description"`
	IsActive            *bool   `json:"isActive"`
}
