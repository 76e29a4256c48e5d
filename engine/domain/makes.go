package domain

import "strings"

// SupportedMakes maps make names to their known models. It feeds vehicle
// inference and the brand/model filters; stores may hold other makes.
var SupportedMakes = map[string][]string{
	"Toyota":     {"Camry", "Corolla", "RAV4", "Highlander", "Yaris", "Land Cruiser", "Hilux", "Prius", "Fortuner", "Avalon"},
	"Honda":      {"Civic", "Accord", "CR-V", "Pilot", "City", "HR-V", "Jazz"},
	"Nissan":     {"Sunny", "Sentra", "Altima", "Qashqai", "X-Trail", "Patrol", "Juke"},
	"Hyundai":    {"Elantra", "Accent", "Tucson", "Santa Fe", "Verna", "Creta", "i10"},
	"Kia":        {"Cerato", "Rio", "Sportage", "Sorento", "Picanto", "Optima"},
	"Chevrolet":  {"Aveo", "Optra", "Cruze", "Captiva", "Lanos"},
	"Mercedes":   {"C-Class", "E-Class", "S-Class", "GLC", "GLE", "A-Class", "CLA"},
	"BMW":        {"3 Series", "5 Series", "7 Series", "X1", "X3", "X5"},
	"Audi":       {"A3", "A4", "A6", "Q3", "Q5", "Q7"},
	"Volkswagen": {"Golf", "Jetta", "Passat", "Tiguan", "Polo"},
	"Fiat":       {"500", "Tipo", "Punto", "128"},
	"Peugeot":    {"208", "301", "308", "508", "3008", "5008"},
	"Renault":    {"Logan", "Megane", "Duster", "Clio", "Kadjar"},
	"Skoda":      {"Octavia", "Fabia", "Superb", "Kodiaq"},
	"Mitsubishi": {"Lancer", "Pajero", "Outlander", "Attrage", "Eclipse Cross"},
	"Jeep":       {"Wrangler", "Grand Cherokee", "Cherokee", "Compass", "Renegade"},
	"Ford":       {"Focus", "Fiesta", "Mustang", "Explorer", "Ranger", "F-150"},
	"Suzuki":     {"Swift", "Alto", "Vitara", "Ciaz", "Dzire"},
}

// MakeAliases maps lower-case alternative spellings, including Arabic
// names, to the canonical make.
var MakeAliases = map[string]string{
	"merc":          "Mercedes",
	"benz":          "Mercedes",
	"mercedes-benz": "Mercedes",
	"vw":            "Volkswagen",
	"chevy":         "Chevrolet",
	"تويوتا":        "Toyota",
	"هوندا":         "Honda",
	"نيسان":         "Nissan",
	"هيونداي":       "Hyundai",
	"كيا":           "Kia",
	"شيفروليه":      "Chevrolet",
	"مرسيدس":        "Mercedes",
	"بي ام دبليو":   "BMW",
	"اودي":          "Audi",
	"أودي":          "Audi",
	"فولكس فاجن":    "Volkswagen",
	"فيات":          "Fiat",
	"بيجو":          "Peugeot",
	"رينو":          "Renault",
	"سكودا":         "Skoda",
	"ميتسوبيشي":     "Mitsubishi",
	"جيب":           "Jeep",
	"فورد":          "Ford",
	"سوزوكي":        "Suzuki",
}

// CanonicalMake returns the canonical make for name, or "" if unknown.
func CanonicalMake(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ""
	}
	if m, ok := MakeAliases[key]; ok {
		return m
	}
	for m := range SupportedMakes {
		if strings.ToLower(m) == key {
			return m
		}
	}
	return ""
}

// MinModelYear is the earliest year we accept.
const MinModelYear = 1970

// MaxModelYear is the latest year we accept (current + 1 for next-year models).
const MaxModelYear = 2027
