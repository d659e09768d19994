package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sonavox/mediad/internal/core"
	"github.com/sonavox/mediad/internal/ratelimit"
)

var (
	submitCallback string
	submitSync     bool
	submitLanguage string
)

var submitCmd = &cobra.Command{
	Use:   "submit <transcribe|convert|download> <url>",
	Short: "Submits a media job to the dispatch service",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		operation, mediaURL := args[0], args[1]

		payload := map[string]any{"url": mediaURL}
		if submitCallback != "" {
			payload["callback_url"] = submitCallback
		}
		if submitSync {
			payload["sync"] = true
		}
		if submitLanguage != "" {
			payload["language"] = submitLanguage
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}

		req, err := http.NewRequest(http.MethodPost, serverURL+"/api/v1/"+operation, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			req.Header.Set(ratelimit.APIKeyHeader, apiKey)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to reach dispatch service: %w", err)
		}
		defer resp.Body.Close()

		var env core.Envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		switch {
		case env.Code == http.StatusOK:
			color.Green("job %s finished (%.2fs)", env.JobID, env.RunTime)
		case env.Code == http.StatusAccepted:
			color.Cyan("job %s queued (position %d)", env.JobID, env.QueueLength)
		default:
			color.Red("job rejected: %d %s", env.Code, env.Message)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(env)
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	submitCmd.Flags().StringVarP(&submitCallback, "callback", "c", "", "Callback URL for asynchronous completion")
	submitCmd.Flags().BoolVar(&submitSync, "sync", false, "Force inline execution even with a callback")
	submitCmd.Flags().StringVarP(&submitLanguage, "language", "l", "", "Transcription language hint")
	rootCmd.AddCommand(submitCmd)
}
