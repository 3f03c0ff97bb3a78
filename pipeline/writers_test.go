package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/aluiziolira/go-crawl-books/models"
)

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	partial := &models.Book{Title: ptr("Untitled Price"), Rating: ptr(1), URL: "http://example.test/book/2"}
	if err := writer.Write([]*models.Book{sampleBook("http://example.test/book/1"), partial}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if !reflect.DeepEqual(records[0], models.RecordKeys) {
		t.Fatalf("unexpected header: %v", records[0])
	}
	want := []string{"A Light in the Attic", "51.77", "22", "3", "Poetry", "It's hard to imagine a world without A Light in the Attic.", "a897fe39b1053632"}
	if !reflect.DeepEqual(records[1], want) {
		t.Fatalf("row = %v, want %v", records[1], want)
	}
	if !reflect.DeepEqual(records[2], []string{"Untitled Price", "", "", "1", "", "", ""}) {
		t.Fatalf("absent fields should be empty cells, got %v", records[2])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	empty := &models.Book{URL: "http://example.test/book/2"}
	if err := writer.Write([]*models.Book{sampleBook("http://example.test/book/1"), empty}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []map[string]any
	for scanner.Scan() {
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		lines = append(lines, decoded)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("json lines=%d, want 2", len(lines))
	}

	for i, line := range lines {
		if len(line) != len(models.RecordKeys) {
			t.Fatalf("line %d has %d keys, want exactly the record keys: %v", i, len(line), line)
		}
		for _, key := range models.RecordKeys {
			if _, ok := line[key]; !ok {
				t.Fatalf("line %d missing key %q", i, key)
			}
		}
	}
	if lines[0]["price"] != 51.77 || lines[0]["rating"] != float64(3) {
		t.Fatalf("unexpected values: %v", lines[0])
	}
	if lines[1]["title"] != nil || lines[1]["upc"] != nil {
		t.Fatalf("absent fields should be null: %v", lines[1])
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "books.csv")
	jsonPath := filepath.Join(dir, "books.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.Write([]*models.Book{sampleBook("http://example.test/book/1")}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestMultiWriterFansOut(t *testing.T) {
	a, b := &mockWriter{}, &mockWriter{}
	writer := NewMultiWriter(a, b)

	if err := writer.Write([]*models.Book{sampleBook("http://example.test/1"), sampleBook("http://example.test/2")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if a.totalWritten() != 2 || b.totalWritten() != 2 {
		t.Fatalf("fan out = %d/%d, want 2/2", a.totalWritten(), b.totalWritten())
	}
	if !a.closed || !b.closed {
		t.Fatalf("both writers should be closed")
	}
}

func TestSQLiteWriterUpsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "books.db")

	writer, err := NewSQLiteWriter(path, "run-1")
	if err != nil {
		t.Fatalf("create sqlite writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Validate(); err == nil {
		t.Fatalf("empty table should not validate")
	}

	first := sampleBook("http://example.test/book/1")
	partial := &models.Book{Title: ptr("Only a title"), URL: "http://example.test/book/2"}
	if err := writer.Write([]*models.Book{first, partial}); err != nil {
		t.Fatalf("write sqlite: %v", err)
	}

	updated := sampleBook("http://example.test/book/1")
	updated.Price = ptr(10.5)
	if err := writer.Write([]*models.Book{updated}); err != nil {
		t.Fatalf("rewrite sqlite: %v", err)
	}

	n, err := writer.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d, want 2 after upsert", n)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate sqlite: %v", err)
	}

	var price float64
	if err := writer.db.QueryRow("SELECT price FROM books WHERE url = ?", "http://example.test/book/1").Scan(&price); err != nil {
		t.Fatalf("query price: %v", err)
	}
	if price != 10.5 {
		t.Fatalf("price = %v, want upserted 10.5", price)
	}

	var upc *string
	if err := writer.db.QueryRow("SELECT upc FROM books WHERE url = ?", "http://example.test/book/2").Scan(&upc); err != nil {
		t.Fatalf("query upc: %v", err)
	}
	if upc != nil {
		t.Fatalf("absent upc should be NULL, got %q", *upc)
	}
}

func TestMongoDocumentKeepsRecordKeys(t *testing.T) {
	book := &models.Book{Title: ptr("Only a title"), URL: "http://example.test/book/2"}
	doc := mongoDocument(book, "run-1")

	m := doc.Map()
	for _, key := range models.RecordKeys {
		if _, ok := m[key]; !ok {
			t.Fatalf("document missing key %q", key)
		}
	}
	if m["title"] != "Only a title" || m["price"] != nil {
		t.Fatalf("unexpected values: %v", m)
	}
	if m["_url"] != book.URL || m["_run_id"] != "run-1" {
		t.Fatalf("unexpected envelope: %v", m)
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("empty bson document")
	}
}
