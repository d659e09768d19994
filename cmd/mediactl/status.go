package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sonavox/mediad/internal/core"
	"github.com/sonavox/mediad/internal/ratelimit"
)

var outputJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Shows the latest status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		jobID := args[0]

		req, err := http.NewRequest(http.MethodGet, serverURL+"/api/v1/jobs/"+jobID, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		if apiKey != "" {
			req.Header.Set(ratelimit.APIKeyHeader, apiKey)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to reach dispatch service: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			color.Red("job %s not found", jobID)
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("dispatch service returned status %d", resp.StatusCode)
		}

		var rec core.StatusRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		if outputJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(rec)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "JOB\tSTATE\tWORKER\tUPDATED")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.JobID,
			colorState(rec.State),
			rec.WorkerID,
			rec.UpdatedAt.Format(time.RFC822),
		)
		if err := w.Flush(); err != nil {
			return err
		}

		if rec.Envelope != nil {
			fmt.Printf("code=%d message=%q runTime=%.2fs queueTime=%.2fs\n",
				rec.Envelope.Code, rec.Envelope.Message, rec.Envelope.RunTime, rec.Envelope.QueueTime)
		}
		return nil
	},
}

func colorState(state core.JobState) string {
	switch state {
	case core.StateDone:
		return color.GreenString(string(state))
	case core.StateRunning:
		return color.CyanString(string(state))
	default:
		return color.YellowString(string(state))
	}
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Shows the health of the dispatch service",
	RunE: func(_ *cobra.Command, _ []string) error {
		resp, err := http.Get(serverURL + "/health")
		if err != nil {
			return fmt.Errorf("failed to reach dispatch service: %w", err)
		}
		defer resp.Body.Close()

		var health map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(health)
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	statusCmd.Flags().BoolVar(&outputJSON, "json", false, "Output status as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}
