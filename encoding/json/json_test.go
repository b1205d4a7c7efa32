package json

import (
	"strings"
	"testing"
)

func TestWriteJson(t *testing.T) {
	type dummy struct {
		Name     string
		FullName string `json:"full_name"`
		Secret   string `json:"-"`
	}
	d := dummy{Name: "aha", FullName: "ah ha", Secret: "shh"}
	buf, err := WriteJson(d)
	if err != nil {
		t.Fatal(err)
	}
	s := string(buf)
	if !strings.Contains(s, `"name":"aha"`) {
		t.Fatalf("expected lowercase field name, got %v", s)
	}
	if !strings.Contains(s, `"full_name":"ah ha"`) {
		t.Fatalf("expected explicitly named field, got %v", s)
	}
	if strings.Contains(s, "shh") {
		t.Fatalf("hidden field serialized, %v", s)
	}
}

func TestParseJsonAs(t *testing.T) {
	type dummy struct {
		Name string
	}
	d, err := ParseJsonAs[dummy]([]byte(`{ "name": "yes" }`))
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "yes" {
		t.Fatalf("expected 'yes', got %#v", d)
	}
}

func TestParseJsonInvalid(t *testing.T) {
	var v map[string]any
	if err := ParseJson([]byte(`{ "name": `), &v); err == nil {
		t.Fatal("should fail")
	}
}
