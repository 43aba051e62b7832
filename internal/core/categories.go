package core

// DefaultCategories is the set seeded for a user that has no categories yet.
// IDs and user ids are assigned at seeding time.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Makanan", Icon: "utensils", Color: "#FF6B6B", Type: Expense},
		{Name: "Transport", Icon: "car", Color: "#4ECDC4", Type: Expense},
		{Name: "Belanja", Icon: "shopping-bag", Color: "#45B7D1", Type: Expense},
		{Name: "Hiburan", Icon: "gamepad-2", Color: "#96CEB4", Type: Expense},
		{Name: "Tagihan", Icon: "receipt", Color: "#FFEAA7", Type: Expense},
		{Name: "Kesehatan", Icon: "heart-pulse", Color: "#DDA0DD", Type: Expense},
		{Name: "Pendidikan", Icon: "graduation-cap", Color: "#74B9FF", Type: Expense},
		{Name: "Lainnya", Icon: "ellipsis", Color: "#636E72", Type: Expense},
		{Name: "Gaji", Icon: "banknote", Color: "#00B894", Type: Income},
		{Name: "Freelance", Icon: "laptop", Color: "#6C5CE7", Type: Income},
		{Name: "Investasi", Icon: "trending-up", Color: "#FDCB6E", Type: Income},
		{Name: "Lain-lain", Icon: "plus-circle", Color: "#A29BFE", Type: Income},
	}
}
