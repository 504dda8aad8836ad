// Package model defines the core domain models for the transaction engine.
package model

// Category is the single category assigned to every transaction.
type Category string

// Category constants. Every transaction carries exactly one.
const (
	CategoryIncome        Category = "income"
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryBills         Category = "bills"
	CategoryHealth        Category = "health"
	CategoryTravel        Category = "travel"
	CategoryEducation     Category = "education"
	CategoryPersonal      Category = "personal"
	CategoryTransfers     Category = "transfers"
	CategoryOther         Category = "other"
)

// Categories lists every valid category value.
var Categories = []Category{
	CategoryIncome,
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryEntertainment,
	CategoryBills,
	CategoryHealth,
	CategoryTravel,
	CategoryEducation,
	CategoryPersonal,
	CategoryTransfers,
	CategoryOther,
}

// Valid reports whether c is one of the known category values.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
