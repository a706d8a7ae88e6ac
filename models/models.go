package models

// All returns every entity managed by the registry schema, in dependency order
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Client{},
		&RetiredSerial{},
		&ReservedSerial{},
		&AuditLog{},
	}
}
