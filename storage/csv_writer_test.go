package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"energysage-scraper/models"
)

func sampleCompanies() []models.Company {
	return []models.Company{
		{
			ID:          1,
			Name:        `ACME Solar "Pros", Inc.`,
			Description: "Full-service installer, serving homes\nand businesses.",
			ProfileURL:  "https://www.energysage.com/supplier/1/acme/",
		},
		{
			ID:           2,
			Name:         "Bay State Energy",
			Description:  "Error retrieving",
			ProfileURL:   "https://www.energysage.com/supplier/2/bay-state/",
			StatesServed: []string{"CT", "MA", "RI"},
		},
	}
}

func TestCompanyCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.csv")
	store := NewCompanyCSVStore(path)

	want := sampleCompanies()
	if err := store.Write(want, true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, hasStates, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !hasStates {
		t.Error("hasStates = false; want true after writing with states")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestCompanyCSVWithoutStatesColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.csv")
	store := NewCompanyCSVStore(path)

	if err := store.Write(sampleCompanies(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, hasStates, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if hasStates {
		t.Error("hasStates = true; want false before the states migration")
	}
	for _, c := range got {
		if c.StatesServed != nil {
			t.Errorf("company %d has states %v; want none", c.ID, c.StatesServed)
		}
	}
}

func TestCompanyCSVEveryFieldQuoted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.csv")
	store := NewCompanyCSVStore(path)

	if err := store.Write(sampleCompanies()[:1], false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if lines[0] != `"id","company_name","description","profile_url"` {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(string(data), `"ACME Solar ""Pros"", Inc."`) {
		t.Error("embedded quotes not doubled inside a quoted field")
	}
}

func TestCompanyCSVBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.csv")
	store := NewCompanyCSVStore(path)

	if err := store.Write(sampleCompanies(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	bakPath, err := store.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if bakPath != path+".bak" {
		t.Errorf("backup path = %q; want %q", bakPath, path+".bak")
	}

	orig, _ := os.ReadFile(path)
	bak, err := os.ReadFile(bakPath)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if string(orig) != string(bak) {
		t.Error("backup content differs from original")
	}
}
