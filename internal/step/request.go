package step

import (
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/blackcoderx/talon/internal/httpx"
	"github.com/blackcoderx/talon/internal/value"
)

// PendingRequest accumulates the `url`/`path`/`param`/`header`/`form
// field`/`multipart *` steps issued before a `method` step fires the
// actual HTTP call.
type PendingRequest struct {
	URLBase     string
	Path        []string
	Params      map[string][]string
	Headers     map[string][]string
	Cookies     map[string]string
	FormFields  map[string][]string
	Multipart   []MultipartPart
	Body        value.Value
	HasBody     bool
}

type MultipartPart struct {
	Name        string
	Filename    string
	ContentType string
	Value       value.Value
	IsFile      bool
}

func newPendingRequest() *PendingRequest {
	return &PendingRequest{
		Params:     make(map[string][]string),
		Headers:    make(map[string][]string),
		Cookies:    make(map[string]string),
		FormFields: make(map[string][]string),
	}
}

func (p *PendingRequest) fullURL() string {
	u := p.URLBase
	for _, seg := range p.Path {
		u = httpx.JoinPath(u, seg)
	}
	if len(p.Params) == 0 {
		return u
	}
	q := url.Values{}
	for k, vs := range p.Params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + q.Encode()
}

// body resolves the outbound request body: multipart parts take
// precedence, then URL-encoded form fields, and only when neither was
// populated by prior steps the explicit `request` payload.
func (p *PendingRequest) body() ([]byte, string, error) {
	if len(p.Multipart) > 0 {
		return p.encodeMultipart()
	}
	if len(p.FormFields) > 0 {
		q := url.Values{}
		for k, vs := range p.FormFields {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		return []byte(q.Encode()), "application/x-www-form-urlencoded", nil
	}
	if p.HasBody {
		switch p.Body.Kind() {
		case value.KindString:
			s, _ := p.Body.IntoString()
			return []byte(s), "", nil
		case value.KindBytes:
			b, _ := p.Body.IntoBytes()
			return b, "", nil
		case value.KindXML:
			xn, _ := p.Body.IntoXML()
			return []byte(xn.Serialize()), "application/xml", nil
		default:
			return []byte(value.CanonicalJSON(p.Body)), "application/json", nil
		}
	}
	return nil, "", nil
}

func (p *PendingRequest) encodeMultipart() ([]byte, string, error) {
	var buf strings.Builder
	w := multipart.NewWriter(&buf)
	for _, part := range p.Multipart {
		if part.IsFile {
			fw, err := w.CreateFormFile(part.Name, part.Filename)
			if err != nil {
				return nil, "", err
			}
			b, _ := part.Value.IntoBytes()
			if b == nil {
				s, _ := part.Value.IntoString()
				b = []byte(s)
			}
			if _, err := fw.Write(b); err != nil {
				return nil, "", err
			}
			continue
		}
		if err := w.WriteField(part.Name, value.Stringify(part.Value)); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return []byte(buf.String()), w.FormDataContentType(), nil
}
