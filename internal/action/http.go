package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wbridge/wbridge/internal/config"
)

// runHTTP performs one outbound HTTP call. Body selection follows the
// precedence json > data > body_is_text; GET requests never carry one.
func (r *Runner) runHTTP(ctx context.Context, a *config.Action, actx Context) (bool, string) {
	target := strings.TrimSpace(Expand(a.URL, actx))
	if target == "" {
		return false, "http action missing url"
	}
	method := strings.ToUpper(strings.TrimSpace(a.Method))
	if method == "" {
		method = http.MethodGet
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case method == http.MethodGet:
	case a.JSON != nil:
		payload, err := json.Marshal(ExpandValue(a.JSON, actx))
		if err != nil {
			return false, fmt.Sprintf("encode json body: %v", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	case a.Data != nil:
		switch data := a.Data.(type) {
		case map[string]any:
			form := url.Values{}
			for k, v := range data {
				form.Set(k, fmt.Sprint(ExpandValue(v, actx)))
			}
			body = strings.NewReader(form.Encode())
			contentType = "application/x-www-form-urlencoded"
		default:
			body = strings.NewReader(Expand(fmt.Sprint(data), actx))
		}
	case a.BodyIsText:
		body = strings.NewReader(actx.Text)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return false, err.Error()
	}
	if len(a.Params) > 0 {
		q := req.URL.Query()
		for k, v := range a.Params {
			q.Set(k, Expand(v, actx))
		}
		req.URL.RawQuery = q.Encode()
	}
	for k, v := range a.Headers {
		req.Header.Set(k, Expand(v, actx))
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	msg := fmt.Sprintf("http %s %s -> %d", method, target, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, msg
	}
	return true, msg
}
