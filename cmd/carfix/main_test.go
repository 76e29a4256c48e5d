package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/sqlstore"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDiagnoseCommand_JSON(t *testing.T) {
	out, err := runCLI(t, "diagnose", "--json", "--brand", "Toyota", "--model", "Corolla",
		"my", "car", "has", "a", "dead", "battery", "and", "will", "not", "crank")
	if err != nil {
		t.Fatal(err)
	}
	var d domain.Diagnosis
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(d.Results) == 0 || d.Results[0].Problem != "Car not starting" {
		t.Fatalf("unexpected results: %+v", d.Results)
	}
}

func TestDiagnoseCommand_Insights(t *testing.T) {
	out, err := runCLI(t, "diagnose", "--json", "--insights", "--brand", "Toyota",
		"my", "car", "has", "a", "dead", "battery", "and", "will", "not", "crank")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Results  []domain.Result `json:"results"`
		Insights *struct {
			Tips []string `json:"maintenance_tips"`
		} `json:"insights"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Insights == nil || len(got.Insights.Tips) == 0 {
		t.Fatalf("expected offline maintenance tips, got %s", out)
	}
}

func TestDiagnoseCommand_InfersVehicle(t *testing.T) {
	out, err := runCLI(t, "diagnose", "--json", "my", "fiat", "500", "makes", "a", "grinding", "noise", "when", "braking")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Grinding noise when braking") {
		t.Fatalf("expected the Fiat brake issue, got %s", out)
	}
}

func TestDiagnoseCommand_Table(t *testing.T) {
	out, err := runCLI(t, "diagnose", "car", "not", "starting")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "battery, starter motor, or ignition") {
		t.Fatalf("expected triage question, got %s", out)
	}
}

func TestDiagnoseCommand_BadPolicy(t *testing.T) {
	if _, err := runCLI(t, "diagnose", "--policy", "fuzzy", "engine", "smoke"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestNearestCommand(t *testing.T) {
	out, err := runCLI(t, "nearest", "--lat", "30.0444", "--lon", "31.2357", "-k", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "AutoFix Center") || strings.Contains(out, "Pro Mechanics") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = runCLI(t, "nearest", "--tow", "--lat", "30.0480", "--lon", "31.2370")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Ahmed") {
		t.Fatalf("expected nearest tow operator, got:\n%s", out)
	}
}

func TestNearestCommand_InvalidCoordinates(t *testing.T) {
	if _, err := runCLI(t, "nearest", "--lat", "95", "--lon", "31"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSeedAndHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carfix.db")
	out, err := runCLI(t, "seed", "--target", "sqlite", "--sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "3 centers, 2 tow operators") {
		t.Fatalf("unexpected seed output: %s", out)
	}

	db, err := sqlstore.Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = db.LogQuery(context.Background(), domain.QueryLog{
		ID: "q1", Query: "engine overheating in traffic", Brand: "Toyota", Model: "Camry",
		Language: domain.LangEnglish, Response: `["Engine overheating"]`, Results: 1, At: time.Now().UTC(),
	})
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	out, err = runCLI(t, "history", "--sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "engine overheating in traffic") {
		t.Fatalf("history missing query:\n%s", out)
	}
}

func TestSeedCommand_UnknownTarget(t *testing.T) {
	if _, err := runCLI(t, "seed", "--target", "mongo"); err == nil {
		t.Fatal("expected error")
	}
}
