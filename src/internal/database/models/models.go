package models

// GetAllModels returns all model types for migration
func GetAllModels() []interface{} {
	return []interface{}{
		&Role{},
		&User{},
		&Book{},
		&Borrowing{},
		&Review{},
		&EmailNotice{},
		&RagDocument{},
	}
}
