package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()

	sheet := book.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "dataset.xlsx")
	if err := book.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestReadRowsWorkbookFirstSheet(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"conversationId", "conversation", "Agent"},
		{"1", "hello", "ada"},
		{"2", "world", "grace"},
	})

	rows, err := ReadRows(path)
	if err != nil {
		t.Fatalf("ReadRows returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["conversationId"] != "1" || rows[0]["conversation"] != "hello" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[1]["Agent"] != "grace" {
		t.Fatalf("unexpected second row %v", rows[1])
	}
}

func TestReadRowsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	content := "conversation_id,conversation\n7,hi there\n8,\"quoted, cell\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	rows, err := ReadRows(path)
	if err != nil {
		t.Fatalf("ReadRows returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1]["conversation"] != "quoted, cell" {
		t.Fatalf("unexpected quoted cell %q", rows[1]["conversation"])
	}
}

func TestReadRowsShortRowReadsEmptyCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	content := "conversation_id,conversation,Agent\n9,text\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	rows, err := ReadRows(path)
	if err != nil {
		t.Fatalf("ReadRows returned error: %v", err)
	}
	if got, ok := rows[0]["Agent"]; !ok || got != "" {
		t.Fatalf("expected empty Agent cell, got %q (present=%v)", got, ok)
	}
}

func TestReadRowsRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.txt")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ReadRows(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSupportedExtension(t *testing.T) {
	for name, want := range map[string]bool{
		"data.xlsx": true,
		"data.XLSX": true,
		"data.csv":  true,
		"data.json": false,
		"data":      false,
	} {
		if got := SupportedExtension(name); got != want {
			t.Fatalf("SupportedExtension(%q) = %v, want %v", name, got, want)
		}
	}
}
