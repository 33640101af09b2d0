package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func postJSON(addr, path string, body any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient().Post("http://"+addr+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func getJSON(addr, path string) (map[string]any, error) {
	resp, err := httpClient().Get("http://" + addr + path)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w (body: %s)", err, raw)
	}
	if resp.StatusCode >= 400 {
		if msg, ok := out["error"]; ok {
			return out, fmt.Errorf("%v", msg)
		}
		return out, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return out, nil
}
