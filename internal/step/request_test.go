package step

import (
	"net/url"
	"strings"
	"testing"

	"github.com/blackcoderx/talon/internal/value"
)

func TestPendingRequestFullURLJoinsPathAndQuery(t *testing.T) {
	p := newPendingRequest()
	p.URLBase = "http://example.com/api"
	p.Path = []string{"cats", "1"}
	p.Params["active"] = []string{"true"}

	got := p.fullURL()
	if !strings.HasPrefix(got, "http://example.com/api/cats/1?") {
		t.Fatalf("fullURL = %q, want prefix http://example.com/api/cats/1?", got)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if u.Query().Get("active") != "true" {
		t.Fatalf("query active = %q, want true", u.Query().Get("active"))
	}
}

func TestPendingRequestBodyPrecedenceMultipartOverForm(t *testing.T) {
	p := newPendingRequest()
	p.FormFields["a"] = []string{"1"}
	p.Multipart = []MultipartPart{{Name: "field", Value: value.NewString("x")}}

	body, contentType, err := p.body()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(contentType, "multipart/form-data") {
		t.Fatalf("contentType = %q, want multipart/form-data", contentType)
	}
	if !strings.Contains(string(body), "field") {
		t.Fatalf("body = %q, want it to contain the field name", body)
	}
}

func TestPendingRequestBodyFormFieldsURLEncoded(t *testing.T) {
	p := newPendingRequest()
	p.FormFields["a"] = []string{"1"}
	body, contentType, err := p.body()
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "application/x-www-form-urlencoded" {
		t.Fatalf("contentType = %q", contentType)
	}
	if string(body) != "a=1" {
		t.Fatalf("body = %q, want a=1", body)
	}
}

func TestPendingRequestBodyJSONDefault(t *testing.T) {
	p := newPendingRequest()
	om := value.NewOrderedMap()
	om.Set("x", value.NewInt(1))
	p.Body = value.NewMap(om)
	p.HasBody = true

	body, contentType, err := p.body()
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "application/json" {
		t.Fatalf("contentType = %q, want application/json", contentType)
	}
	if string(body) != `{"x":1}` {
		t.Fatalf("body = %q", body)
	}
}

func TestPendingRequestBodyStringPassthrough(t *testing.T) {
	p := newPendingRequest()
	p.Body = value.NewString("raw text")
	p.HasBody = true

	body, contentType, err := p.body()
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		t.Fatalf("contentType = %q, want empty for raw string body", contentType)
	}
	if string(body) != "raw text" {
		t.Fatalf("body = %q, want %q", body, "raw text")
	}
}

func TestPendingRequestNoBodyWhenNothingSet(t *testing.T) {
	p := newPendingRequest()
	body, contentType, err := p.body()
	if err != nil {
		t.Fatal(err)
	}
	if body != nil || contentType != "" {
		t.Fatalf("expected empty body/contentType, got %q/%q", body, contentType)
	}
}
