package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var submitHints []string

// submitCmd submits a document to a running jobflowd server.
var submitCmd = &cobra.Command{
	Use:   "submit <location> <media-type>",
	Short: "Submit an extraction job to a jobflowd server",
	Long: `Submit a document reference to a running jobflowd server.

The location must be reachable from the server, not from this CLI.

Examples:
  # Submit a job
  jobflow submit /data/posting.pdf application/pdf

  # Submit with hints
  jobflow submit /data/posting.txt text/plain --hint company=Acme`,
	Args: cobra.ExactArgs(2),
	RunE: runSubmit,
}

// statusCmd polls one job's status.
var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of a submitted job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// healthCmd checks server health.
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check jobflowd server health",
	RunE:  runHealthCheck,
}

func init() {
	submitCmd.Flags().StringArrayVar(&submitHints, "hint", nil, "extraction hint as key=value (repeatable)")
}

// submitRequest matches internal/server SubmitJobRequest.
type submitRequest struct {
	Location  string            `json:"location"`
	MediaType string            `json:"media_type"`
	Hints     map[string]string `json:"hints,omitempty"`
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func runSubmit(cmd *cobra.Command, args []string) error {
	hints, err := parseHints(submitHints)
	if err != nil {
		return err
	}

	body, err := json.Marshal(submitRequest{Location: args[0], MediaType: args[1], Hints: hints})
	if err != nil {
		return err
	}

	resp, err := httpClient().Post(serverURL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(cmd, resp, http.StatusAccepted)
}

func runStatus(cmd *cobra.Command, args []string) error {
	resp, err := httpClient().Get(serverURL + "/api/v1/jobs/" + args[0])
	if err != nil {
		return fmt.Errorf("fetch job status: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(cmd, resp, http.StatusOK)
}

func runHealthCheck(cmd *cobra.Command, _ []string) error {
	resp, err := httpClient().Get(serverURL + "/health")
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(cmd, resp, http.StatusOK)
}

// printResponse pretty-prints the server's JSON body and errors on an
// unexpected status code.
func printResponse(cmd *cobra.Command, resp *http.Response, want int) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))

	if resp.StatusCode != want {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
