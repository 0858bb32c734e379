package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/config"
	"github.com/hamed0406/pingmonitor/internal/repo/file"
	"github.com/hamed0406/pingmonitor/internal/repo/postgres"
)

type checker struct {
	failed bool
}

func (c *checker) fail(msg string) {
	fmt.Fprintln(os.Stderr, "✖", msg)
	c.failed = true
}
func (c *checker) warn(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
func (c *checker) ok(msg string)   { fmt.Println("✔", msg) }

func main() {
	var configPath string
	root := &cobra.Command{
		Use:          "preflight",
		Short:        "Check that pingmonitor can start with the current environment",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &checker{}
			c.run(cmd.Context(), configPath)
			if c.failed {
				return fmt.Errorf("preflight failed")
			}
			c.ok("preflight passed")
			return nil
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", os.Getenv("PINGMONITOR_CONFIG"), "YAML config file")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func (c *checker) run(ctx context.Context, configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		c.fail("config: " + err.Error())
		return
	}
	c.ok("config valid")

	if cfg.Probe.Mode == "icmp" {
		if path, err := exec.LookPath(cfg.Probe.Command); err != nil {
			c.fail(fmt.Sprintf("ping command %q not found in PATH", cfg.Probe.Command))
		} else {
			c.ok("ping command " + path)
		}
	} else {
		c.ok(fmt.Sprintf("tcp probes on port %d", cfg.Probe.TCPPort))
	}

	if len(cfg.Admin) == 0 {
		c.warn("ADMIN_API_KEYS is empty; write routes are open.")
	}
	if len(cfg.Public) == 0 && len(cfg.Admin) == 0 {
		c.warn("PUBLIC_API_KEYS is empty; read routes are open.")
	}
	for name, v := range map[string]string{"ADMIN_API_KEYS": os.Getenv("ADMIN_API_KEYS"), "PUBLIC_API_KEYS": os.Getenv("PUBLIC_API_KEYS")} {
		if strings.Contains(v, " ") {
			c.warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}
	if len(cfg.Origins) == 0 {
		c.warn("ALLOWED_ORIGINS empty; every origin is allowed by CORS.")
	} else {
		c.ok("ALLOWED_ORIGINS=" + strings.Join(cfg.Origins, ","))
	}
	if cfg.SlackWebhook == "" {
		c.warn("SLACK_WEBHOOK_URL empty; alerts only go to the log.")
	} else {
		c.ok("Slack webhook configured")
	}

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pg, err := postgres.New(ctx, cfg.DatabaseURL, zap.NewNop(), 5*time.Second)
		if err != nil {
			c.fail("postgres: " + err.Error())
			return
		}
		defer pg.Close()
		st, err := pg.Load(ctx)
		if err != nil {
			c.fail("postgres load: " + err.Error())
			return
		}
		c.ok(fmt.Sprintf("postgres reachable, %d host records", len(st.Records)))
		return
	}

	dir := filepath.Dir(cfg.StatePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.fail("state dir: " + err.Error())
		return
	}
	st, err := file.New(cfg.StatePath).Load(ctx)
	if err != nil {
		c.fail("state file: " + err.Error())
		return
	}
	c.ok(fmt.Sprintf("state file %s, %d host records", cfg.StatePath, len(st.Records)))
}
