package vehiclenlp

import "testing"

func TestExtractBest(t *testing.T) {
	tests := []struct {
		input     string
		wantMake  string
		wantModel string
		wantYear  int
	}{
		{"My 2019 Honda Civic is making a clicking noise", "Honda", "Civic", 2019},
		{"My Toyota Corolla won't start", "Toyota", "Corolla", 0},
		{"2022 Camry hybrid battery issue", "Toyota", "Camry", 2022},
		{"Having trouble with my '18 Chevy Optra", "Chevrolet", "Optra", 2018},
		{"BMW 3 Series turbo problems", "BMW", "3 Series", 0},
		{"Jeep Grand Cherokee 2020 death wobble", "Jeep", "Grand Cherokee", 2020},
		{"Help with VW Golf tune", "Volkswagen", "Golf", 0},
		{"2024 Hyundai Tucson transmission shudder", "Hyundai", "Tucson", 2024},
		{"Mercedes C-Class 2020 oil leak", "Mercedes", "C-Class", 2020},
		{"mercedes-benz E-Class brakes", "Mercedes", "E-Class", 0},
		{"Fiat 128 overheating", "Fiat", "128", 0},
		{"سيارتي تويوتا لا تعمل", "Toyota", "", 0},
		{"Nissan Sunny 2015 AC not blowing cold", "Nissan", "Sunny", 2015},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m := ExtractBest(tt.input)
			if m == nil {
				t.Fatalf("ExtractBest(%q) = nil, want match", tt.input)
			}
			if m.Make != tt.wantMake {
				t.Errorf("Make = %q, want %q", m.Make, tt.wantMake)
			}
			if m.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", m.Model, tt.wantModel)
			}
			if m.Year != tt.wantYear {
				t.Errorf("Year = %d, want %d", m.Year, tt.wantYear)
			}
		})
	}
}

func TestExtractEmpty(t *testing.T) {
	if m := ExtractBest(""); m != nil {
		t.Error("expected nil for empty string")
	}
	if m := ExtractBest("nothing about cars here"); m != nil {
		t.Errorf("expected nil, got %+v", m)
	}
}

func TestExtractNoPartialWords(t *testing.T) {
	// "kiasu" contains "kia" but is not a make mention.
	if m := ExtractBest("a kiasu driver"); m != nil {
		t.Errorf("expected nil, got %+v", m)
	}
}

func TestExtractMultiple(t *testing.T) {
	matches := Extract("I traded my Honda Civic for a Toyota RAV4")
	if len(matches) < 2 {
		t.Fatalf("expected at least 2 matches, got %d", len(matches))
	}
}

func TestCaseInsensitive(t *testing.T) {
	m := ExtractBest("my 2020 HONDA civic overheating")
	if m == nil || m.Make != "Honda" || m.Model != "Civic" {
		t.Errorf("case insensitive failed: %+v", m)
	}
}

func TestStandaloneModel(t *testing.T) {
	m := ExtractBest("corolla brakes squeal")
	if m == nil {
		t.Fatal("expected match")
	}
	if m.Make != "Toyota" || m.Model != "Corolla" {
		t.Errorf("got %s %s, want Toyota Corolla", m.Make, m.Model)
	}
}

func TestAbbreviatedYear(t *testing.T) {
	m := ExtractBest("'19 Ford Mustang GT exhaust")
	if m == nil {
		t.Fatal("expected match")
	}
	if m.Year != 2019 {
		t.Errorf("Year = %d, want 2019", m.Year)
	}
	if m.Make != "Ford" || m.Model != "Mustang" {
		t.Errorf("got %s %s, want Ford Mustang", m.Make, m.Model)
	}
}
