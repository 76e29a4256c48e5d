package graph

import "strings"

// systemKeywords maps lowercase fragments to vehicle systems. Earlier
// entries win, so specific phrases come before the words they contain.
var systemKeywords = []struct {
	fragment string
	system   string
}{
	{"air conditioning", "HVAC"},
	{"a/c", "HVAC"},
	{"refrigerant", "HVAC"},
	{"compressor", "HVAC"},
	{"heater", "HVAC"},
	{"overheat", "Cooling"},
	{"coolant", "Cooling"},
	{"radiator", "Cooling"},
	{"water pump", "Cooling"},
	{"thermostat", "Cooling"},
	{"cooling", "Cooling"},
	{"brak", "Brakes"},
	{"abs", "Brakes"},
	{"rotor", "Brakes"},
	{"transmission", "Transmission"},
	{"gearbox", "Transmission"},
	{"clutch", "Transmission"},
	{"battery", "Electrical"},
	{"starter", "Electrical"},
	{"alternator", "Electrical"},
	{"warning light", "Electrical"},
	{"dashboard", "Electrical"},
	{"fuse", "Electrical"},
	{"sensor", "Electrical"},
	{"steering", "Steering"},
	{"suspension", "Suspension"},
	{"shock", "Suspension"},
	{"catalytic converter", "Exhaust"},
	{"exhaust", "Exhaust"},
	{"muffler", "Exhaust"},
	{"fuel", "Fuel System"},
	{"tire", "Safety"},
	{"airbag", "Safety"},
	{"engine", "Engine"},
	{"oil", "Engine"},
	{"misfir", "Engine"},
}

// ClassifySystem returns the vehicle system an issue belongs to, looking
// at the problem first, then keywords, then the solution. It returns ""
// when nothing matches.
func ClassifySystem(problem, solution string, keywords []string) string {
	for _, text := range []string{problem, strings.Join(keywords, " "), solution} {
		lower := strings.ToLower(text)
		for _, sk := range systemKeywords {
			if strings.Contains(lower, sk.fragment) {
				return sk.system
			}
		}
	}
	return ""
}
