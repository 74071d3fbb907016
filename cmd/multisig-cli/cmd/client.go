package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiResponse 与服务端 response.Response 对应
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
	Ref  string          `json:"ref,omitempty"`
}

func postJSON(ctx context.Context, path string, body interface{}) (*apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	url := strings.TrimRight(serverURL(), "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "POST %s", url)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Errorf("unexpected response (HTTP %d): %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Ref != "" {
			return &out, fmt.Errorf("HTTP %d code=%d: %s (ref %s)", resp.StatusCode, out.Code, out.Msg, out.Ref)
		}
		return &out, fmt.Errorf("HTTP %d code=%d: %s", resp.StatusCode, out.Code, out.Msg)
	}
	return &out, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func decodeData(resp *apiResponse, v interface{}) error {
	if len(resp.Data) == 0 {
		return errors.New("响应中没有 data 字段")
	}
	return errors.Wrap(json.Unmarshal(resp.Data, v), "decode response data")
}
