package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

var (
	apiBase string
	apiKey  string
)

type client struct {
	base string
	key  string
	http *http.Client
}

func newClient() *client {
	return &client{
		base: strings.TrimRight(apiBase, "/"),
		key:  apiKey,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// do sends body as JSON and decodes a 2xx response into out.
func (c *client) do(method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return resp.StatusCode, fmt.Errorf("API returned %d: %s", resp.StatusCode, e.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func lastSample(h domain.HostSnapshot) string {
	if len(h.History) == 0 {
		return "-"
	}
	switch v := h.History[len(h.History)-1]; {
	case v == 0:
		return "down"
	case v < 0:
		return "up (no rtt)"
	default:
		return fmt.Sprintf("%.1f ms", v)
	}
}

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List and change monitored hosts",
}

var hostsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every host with its latest sample",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var hosts []domain.HostSnapshot
		if _, err := newClient().do(http.MethodGet, "/api/hosts", nil, &hosts); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "HOST\tACTIVE\tLAST\tSAMPLES")
		for _, h := range hosts {
			fmt.Fprintf(tw, "%s\t%t\t%s\t%d\n", h.ID, h.Active, lastSample(h), len(h.History))
		}
		return tw.Flush()
	},
}

var hostsAddCmd = &cobra.Command{
	Use:   "add <host>",
	Short: "Start monitoring a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := newClient().do(http.MethodPost, "/api/hosts", map[string]string{"id": args[0]}, nil)
		if err != nil {
			return err
		}
		if status == http.StatusCreated {
			fmt.Fprintln(cmd.OutOrStdout(), "Added", args[0])
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), args[0], "is already monitored")
		}
		return nil
	},
}

func toggleCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <host>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/hosts/" + url.PathEscape(args[0]) + "/active"
			if _, err := newClient().do(http.MethodPut, path, map[string]bool{"active": active}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s active=%t\n", args[0], active)
			return nil
		},
	}
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-read hosts and interval from the state store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var rep struct {
			Hosts           int `json:"hosts"`
			Added           int `json:"added"`
			Removed         int `json:"removed"`
			Skipped         int `json:"skipped"`
			IntervalSeconds int `json:"interval_seconds"`
		}
		if _, err := newClient().do(http.MethodPost, "/api/reload", nil, &rep); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %d hosts every %ds (added %d, removed %d, skipped %d)\n",
			rep.Hosts, rep.IntervalSeconds, rep.Added, rep.Removed, rep.Skipped)
		return nil
	},
}

func main() {
	def := os.Getenv("API_BASE")
	if def == "" {
		def = "http://localhost:8080"
	}

	root := &cobra.Command{
		Use:          "pingctl",
		Short:        "Talk to a running pingmonitor",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", def, "pingmonitor API base URL")
	root.PersistentFlags().StringVar(&apiKey, "key", os.Getenv("PINGMONITOR_API_KEY"), "API key")

	hostsCmd.AddCommand(hostsListCmd, hostsAddCmd,
		toggleCmd("enable", "Include a host in probe rounds", true),
		toggleCmd("disable", "Exclude a host from probe rounds, keeping its history", false),
	)
	root.AddCommand(hostsCmd, reloadCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
