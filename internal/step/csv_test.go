package step

import "testing"

func TestParseCSVBuildsRowMapsFromHeader(t *testing.T) {
	text := "name,age\nalice,30\nbob,40\n"
	v, err := parseCSV(text)
	if err != nil {
		t.Fatal(err)
	}
	rows, ok := v.IntoList()
	if !ok {
		t.Fatal("expected a list result")
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	om, _ := rows[0].IntoMap()
	nameV, _ := om.Get("name")
	name, _ := nameV.IntoString()
	if name != "alice" {
		t.Fatalf("row[0].name = %q, want alice", name)
	}
}

func TestParseCSVEmptyInputYieldsEmptyList(t *testing.T) {
	v, err := parseCSV("")
	if err != nil {
		t.Fatal(err)
	}
	rows, ok := v.IntoList()
	if !ok {
		t.Fatal("expected a list result")
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
}
