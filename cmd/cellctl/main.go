// Package main provides cellctl, a command-line client for inspecting and
// driving a running cell-router process over its REST and metrics/health
// HTTP surfaces.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	restAddr    string
	metricsAddr string
	timeout     time.Duration

	version = "0.1.0-dev"
)

func main() {
	root := &cobra.Command{
		Use:   "cellctl",
		Short: "Inspect and drive a running cell-router process",
	}
	root.PersistentFlags().StringVar(&restAddr, "rest", "http://localhost:8774", "base URL of the target cell's REST adapter")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics", "http://localhost:8775", "base URL of the target cell's metrics/health server")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newStatusCmd(),
		newServicesCmd(),
		newServerCmd(),
		newMetricsCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print cellctl's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("cellctl version %s\n", version)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the target cell's health status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(metricsAddr+"/health", os.Stdout)
		},
	}
}

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show the target cell's metrics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(metricsAddr+"/metrics/json", os.Stdout)
		},
	}
	return cmd
}

func newServicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List the cells visible from this cell's router",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(restAddr+"/services", os.Stdout)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <cell-service-id>",
			Short: "Show a single cell/service entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return getJSON(restAddr+"/services/"+args[0], os.Stdout)
			},
		},
		&cobra.Command{
			Use:   "enable <cell-service-id>",
			Short: "Enable a cell/service entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return postJSON(restAddr+"/services/"+args[0]+"/enable", os.Stdout)
			},
		},
		&cobra.Command{
			Use:   "disable <cell-service-id>",
			Short: "Disable a cell/service entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return postJSON(restAddr+"/services/"+args[0]+"/disable", os.Stdout)
			},
		},
	)
	return cmd
}

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server <cell-server-id>",
		Short: "Show a single server record by its <cellName>-<uuid> id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(restAddr+"/servers/"+args[0], os.Stdout)
		},
	}
}

func getJSON(url string, w io.Writer) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	return printResponse(resp, w)
}

func postJSON(url string, w io.Writer) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	return printResponse(resp, w)
}

func printResponse(resp *http.Response, w io.Writer) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		_, err := w.Write(body)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
