package controller

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"unihub/utils"
)

// requestFields gives handlers one view over JSON, urlencoded and multipart
// bodies, keeping track of which keys were actually sent.
type requestFields struct {
	form map[string][]string
	json map[string]json.RawMessage
}

func readFields(c *fiber.Ctx) (*requestFields, error) {
	f := &requestFields{}

	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))
	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, utils.BadRequest("Invalid multipart form")
		}
		f.form = form.Value
	case strings.HasPrefix(contentType, fiber.MIMEApplicationForm):
		f.form = make(map[string][]string)
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			f.form[string(k)] = append(f.form[string(k)], string(v))
		})
	default:
		body := bytes.TrimSpace(c.Body())
		if len(body) == 0 {
			break
		}
		if err := json.Unmarshal(body, &f.json); err != nil {
			return nil, utils.BadRequest("Invalid JSON body")
		}
	}

	return f, nil
}

func (f *requestFields) raw(key string) (json.RawMessage, bool) {
	if f.form != nil {
		vals, ok := f.form[key]
		if !ok || len(vals) == 0 {
			return nil, false
		}
		b, _ := json.Marshal(vals[0])
		return b, true
	}
	v, ok := f.json[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

// Has reports whether key was present and not null.
func (f *requestFields) Has(key string) bool {
	_, ok := f.raw(key)
	return ok
}

// String returns key as text. JSON numbers and booleans are accepted verbatim.
func (f *requestFields) String(key string) (string, bool) {
	v, ok := f.raw(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, true
	}
	return string(bytes.TrimSpace(v)), true
}

// Trimmed is String with surrounding whitespace removed.
func (f *requestFields) Trimmed(key string) string {
	s, _ := f.String(key)
	return strings.TrimSpace(s)
}

func (f *requestFields) Int(key string) (int, bool, error) {
	s, ok := f.String(key)
	if !ok || strings.TrimSpace(s) == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, true, utils.BadRequest(key + " must be a number")
	}
	return n, true, nil
}

func (f *requestFields) Bool(key string) (bool, bool, error) {
	s, ok := f.String(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, true, utils.BadRequest(key + " must be true or false")
	}
	return b, true, nil
}

// StringList accepts a JSON array, a string holding a JSON array, or a
// comma separated string.
func (f *requestFields) StringList(key string) ([]string, bool, error) {
	v, ok := f.raw(key)
	if !ok {
		return nil, false, nil
	}

	var list []string
	if err := json.Unmarshal(v, &list); err == nil {
		return trimList(list), true, nil
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, true, utils.BadRequest(key + " must be a list")
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil, true, utils.BadRequest(key + " must be a valid JSON array")
		}
		return trimList(list), true, nil
	}
	return utils.SplitList(s), true, nil
}

// Decode unmarshals key into dst. Multipart forms carry structured values as
// JSON text.
func (f *requestFields) Decode(key string, dst interface{}) (bool, error) {
	v, ok := f.raw(key)
	if !ok {
		return false, nil
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		v = json.RawMessage(s)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return true, utils.BadRequest("Invalid " + key + " format")
	}
	return true, nil
}

func trimList(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
