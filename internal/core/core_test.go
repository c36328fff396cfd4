package core

import "testing"

func TestConfigInt(t *testing.T) {
	src := Source{Config: map[string]string{
		"max_items": "20",
		"zero":      "0",
		"negative":  "-3",
		"junk":      "ten",
		"blank":     "",
	}}
	cases := []struct {
		key  string
		def  int
		want int
	}{
		{"max_items", 5, 20},
		{"zero", 5, 5},
		{"negative", 5, 5},
		{"junk", 5, 5},
		{"blank", 5, 5},
		{"missing", 5, 5},
	}
	for _, c := range cases {
		if got := src.ConfigInt(c.key, c.def); got != c.want {
			t.Errorf("ConfigInt(%q, %d) = %d, want %d", c.key, c.def, got, c.want)
		}
	}
}

func TestConfigString(t *testing.T) {
	src := Source{Config: map[string]string{"sort": "new", "blank": ""}}
	if got := src.ConfigString("sort", "hot"); got != "new" {
		t.Errorf("Expected configured value, got %q", got)
	}
	if got := src.ConfigString("blank", "hot"); got != "hot" {
		t.Errorf("Expected default for blank value, got %q", got)
	}
	if got := src.ConfigString("missing", "hot"); got != "hot" {
		t.Errorf("Expected default for missing key, got %q", got)
	}
}

func TestBestText(t *testing.T) {
	c := Candidate{Preview: "preview text"}
	if got := c.BestText(); got != "preview text" {
		t.Errorf("Expected preview without body, got %q", got)
	}
	c.Body = "full body text"
	if got := c.BestText(); got != "full body text" {
		t.Errorf("Expected body when present, got %q", got)
	}
}

func TestDigestResultEmptyAndCount(t *testing.T) {
	d := DigestResult{}
	if !d.Empty() || d.EntryCount() != 0 {
		t.Error("Zero-value digest must be empty")
	}

	d.Sections = []TopicSection{
		{TopicName: "A"},
		{TopicName: "B", Entries: []DigestEntry{{Title: "x"}, {Title: "y"}}},
	}
	if d.Empty() {
		t.Error("Digest with entries must not be empty")
	}
	if got := d.EntryCount(); got != 2 {
		t.Errorf("Expected 2 entries, got %d", got)
	}
}
