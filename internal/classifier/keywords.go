package classifier

import "github.com/hearthledger/hearthledger/internal/model"

// categoryKeywords maps each category to the keyword set the scorer matches
// against combined description+merchant text. Matching is case-insensitive
// substring search.
var categoryKeywords = map[model.Category][]string{
	model.CategoryIncome: {
		"payroll", "salary", "direct deposit", "paycheck", "dividend",
		"interest payment", "refund", "reimbursement", "bonus",
	},
	model.CategoryFood: {
		"starbucks", "mcdonald", "chipotle", "restaurant", "cafe", "coffee",
		"doordash", "grubhub", "uber eats", "grocery", "safeway", "kroger",
		"whole foods", "trader joe", "pizza", "bakery", "deli", "diner",
	},
	model.CategoryTransport: {
		"uber", "lyft", "shell", "chevron", "exxon", "gas station", "fuel",
		"parking", "metro", "transit", "toll", "amtrak", "car wash",
	},
	model.CategoryShopping: {
		"amazon", "target", "walmart", "costco", "best buy", "ebay", "etsy",
		"nike", "apple store", "ikea", "home depot", "lowes", "macys",
	},
	model.CategoryEntertainment: {
		"netflix", "spotify", "hulu", "disney", "hbo", "cinema", "theater",
		"steam", "playstation", "xbox", "nintendo", "concert", "ticketmaster",
	},
	model.CategoryBills: {
		"electric", "water utility", "comcast", "xfinity", "verizon", "at&t",
		"t-mobile", "internet", "insurance", "mortgage", "rent payment",
		"utility",
	},
	model.CategoryHealth: {
		"pharmacy", "cvs", "walgreens", "doctor", "dental", "clinic",
		"hospital", "optometry", "gym", "fitness",
	},
	model.CategoryTravel: {
		"airline", "united air", "delta air", "southwest air", "hotel",
		"airbnb", "marriott", "hilton", "expedia", "booking.com", "hertz",
		"rental car",
	},
	model.CategoryEducation: {
		"tuition", "university", "college", "udemy", "coursera", "bookstore",
		"textbook",
	},
	model.CategoryPersonal: {
		"salon", "barber", "spa", "laundry", "dry clean", "haircut",
	},
	model.CategoryTransfers: {
		"transfer", "zelle", "venmo", "wire", "withdrawal", "deposit to",
	},
}
