// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiCallTimeout = 5 * time.Minute

// apiCall issues one JSON request against the visualizer service and
// decodes the response body into out (which may be nil). Non-2xx
// responses are returned as errors carrying the service's "error"
// field when present.
func apiCall(ctx context.Context, method, path string, body, out any) error {
	base := strings.TrimSuffix(visualizerURL, "/")

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: apiCallTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach the visualizer at %s: %w", base, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("visualizer returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("visualizer returned %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// printResult writes v to stdout, as indented JSON when --json is set
// or via the line formatter otherwise.
func printResult(v any, lines func() []string) {
	if jsonOutput {
		payload, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Printf("%v\n", v)
			return
		}
		fmt.Println(string(payload))
		return
	}
	for _, line := range lines() {
		fmt.Println(line)
	}
}
