package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/prisk/internal/modules/payload"
)

func newPublishCmd(opts *rootOptions) *cobra.Command {
	var (
		url   string
		token string
	)

	cmd := &cobra.Command{
		Use:   "publish <payload.json>",
		Short: "Publish a payload file to a running prisk server",
		Long: `Validate a payload file locally, then POST it to the server's publish
endpoint with the X-Publish-Token header.

Examples:
  PUBLISH_TOKEN=secret prisk publish data/latest.json
  prisk publish data/latest.json --url https://risk.example.com/api/publish --token secret`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token or PUBLISH_TOKEN is required")
			}

			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			p, err := payload.Decode(bytes.NewReader(body))
			if err != nil {
				return err
			}
			if err := payload.Validate(p); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			resp, err := publish(ctx, url, token, body)
			if err != nil {
				return err
			}

			opts.log.Debug().Str("url", url).Str("as_of", p.AsOf).Msg("Payload published")
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8080/api/publish", "Publish endpoint")
	cmd.Flags().StringVar(&token, "token", os.Getenv("PUBLISH_TOKEN"), "Publish token")

	return cmd
}

func publish(ctx context.Context, url, token string, body []byte) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Publish-Token", token)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to publish: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("publish failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}
