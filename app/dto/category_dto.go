package dto

// CategoryDTO is the public view of a category
type CategoryDTO struct {
	ID        uint   `json:"id" example:"3"`
	Name      string `json:"name" example:"wholesale"`
	CreatedAt string `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

// CreateCategoryRequest adds a category
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255" example:"wholesale"`
}
