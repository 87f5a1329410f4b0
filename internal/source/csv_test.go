package source

import (
	"strings"
	"testing"

	"github.com/rmaia/idlink/internal/testutil"
)

func TestParse(t *testing.T) {
	data := "ID, NOME ,TELEFONE\n123,Maria Silva,(11) 91234-5678\n456,João Pereira,\n"

	records, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0]["ID"] != "123" || records[0]["NOME"] != "Maria Silva" {
		t.Errorf("records[0] = %v", records[0])
	}
	if records[1]["TELEFONE"] != "" {
		t.Errorf("records[1][TELEFONE] = %q, want empty", records[1]["TELEFONE"])
	}
}

func TestParse_RaggedRows(t *testing.T) {
	data := "a,b,c\n1,2\n1,2,3,4\n"

	records, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0]["c"] != "" {
		t.Errorf("short row: c = %q, want padded empty", records[0]["c"])
	}
	if records[1]["c"] != "3" {
		t.Errorf("long row: c = %q, want 3 (extras truncated)", records[1]["c"])
	}
}

func TestParse_EmptyFile(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Error("Parse() on empty input expected error")
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "clients.csv", "ID,NOME\n1,Ana\n")

	records, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() error: %v", err)
	}
	if len(records) != 1 || records[0]["NOME"] != "Ana" {
		t.Errorf("records = %v", records)
	}

	if _, err := LoadCSV(dir + "/missing.csv"); err == nil {
		t.Error("LoadCSV() on missing file expected error")
	}
}
