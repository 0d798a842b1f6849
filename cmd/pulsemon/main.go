// pulsemon is the CLI companion to monitord. It talks to the daemon's HTTP
// API: add-target, start, stop, ping <id>, stats <id> [--window 24h|7d|30d].
// Exits non-zero on configuration or connectivity failure.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"pulsemon/internal/domain"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	api := os.Getenv("PULSEMON_API")
	if api == "" {
		api = "http://127.0.0.1:8080"
	}
	c := &client{base: api, http: &http.Client{Timeout: 30 * time.Second}}

	var err error
	switch os.Args[1] {
	case "add-target":
		err = cmdAddTarget(c, os.Args[2:])
	case "start":
		err = cmdMonitor(c, "start")
	case "stop":
		err = cmdMonitor(c, "stop")
	case "ping":
		err = cmdPing(c, os.Args[2:])
	case "stats":
		err = cmdStats(c, os.Args[2:])
	case "targets":
		err = cmdTargets(c)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pulsemon <command> [flags]

commands:
  add-target --url URL [--name N] [--protocol http|db] [--method M]
             [--expect-status 200,201] [--expect-text T] [--timeout SECONDS]
  targets
  start
  stop
  ping <id>
  stats <id> [--window 24h|7d|30d]

The daemon address comes from PULSEMON_API (default http://127.0.0.1:8080).`)
}

type client struct {
	base string
	http *http.Client
}

type apiError struct {
	Error string `json:"error"`
}

func (c *client) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var ae apiError
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &ae) == nil && ae.Error != "" {
			return fmt.Errorf("%s (%s)", ae.Error, resp.Status)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func cmdAddTarget(c *client, args []string) error {
	fs := flag.NewFlagSet("add-target", flag.ExitOnError)
	url := fs.String("url", "", "target URL or connection string (required)")
	name := fs.String("name", "", "display name")
	protocol := fs.String("protocol", "http", "http or db")
	method := fs.String("method", "", "HTTP method")
	expectStatus := fs.String("expect-status", "", "comma-separated status codes")
	expectText := fs.String("expect-text", "", "required response substring")
	timeout := fs.Int("timeout", 0, "per-target timeout override, seconds")
	fs.Parse(args)

	if *url == "" {
		return fmt.Errorf("--url is required")
	}

	t := domain.Target{
		Name:           *name,
		URL:            *url,
		Protocol:       domain.Protocol(*protocol),
		Method:         *method,
		ExpectedText:   *expectText,
		TimeoutSeconds: *timeout,
		Enabled:        true,
	}
	if *expectStatus != "" {
		for _, part := range strings.Split(*expectStatus, ",") {
			code, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("bad --expect-status value %q", part)
			}
			t.ExpectedStatus = append(t.ExpectedStatus, code)
		}
	}

	var created domain.Target
	if err := c.do(http.MethodPost, "/api/targets", t, &created); err != nil {
		return err
	}
	fmt.Printf("added %s (%s)\n", created.ID, created.URL)
	return nil
}

func cmdTargets(c *client) error {
	var targets []domain.Target
	if err := c.do(http.MethodGet, "/api/targets", nil, &targets); err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("no targets")
		return nil
	}
	for _, t := range targets {
		state := "enabled"
		if !t.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %-8s %-4s %s\n", t.ID, state, t.Protocol, t.URL)
	}
	return nil
}

func cmdMonitor(c *client, action string) error {
	var state map[string]bool
	if err := c.do(http.MethodPost, "/api/monitor/"+action, nil, &state); err != nil {
		return err
	}
	if state["running"] {
		fmt.Println("monitoring running")
	} else {
		fmt.Println("monitoring stopped")
	}
	return nil
}

func cmdPing(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pulsemon ping <id>")
	}
	var res domain.ProbeResult
	if err := c.do(http.MethodPost, "/api/targets/"+args[0]+"/ping", nil, &res); err != nil {
		return err
	}

	switch res.Status {
	case domain.StatusSuccess:
		color.Green("success  %dms", res.ResponseTimeMS)
	case domain.StatusTimeout:
		color.Yellow("timeout  %dms", res.ResponseTimeMS)
	default:
		color.Red("failure  %dms", res.ResponseTimeMS)
	}
	if res.StatusCode != nil {
		fmt.Printf("status code: %d\n", *res.StatusCode)
	}
	if res.ErrorMessage != "" {
		fmt.Println(res.ErrorMessage)
		return fmt.Errorf("probe failed")
	}
	return nil
}

func cmdStats(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pulsemon stats <id> [--window 24h|7d|30d]")
	}
	id := args[0]

	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	window := fs.String("window", "", "24h, 7d or 30d (default: all three)")
	fs.Parse(args[1:])

	var st domain.UptimeStats
	if err := c.do(http.MethodGet, "/api/targets/"+id+"/stats", nil, &st); err != nil {
		return err
	}

	switch st.CurrentStatus {
	case domain.StateUp:
		color.Green("status: up")
	case domain.StateDown:
		color.Red("status: down")
	default:
		color.Yellow("status: unknown")
	}

	switch *window {
	case "24h":
		fmt.Printf("uptime 24h: %.2f%%\n", st.Uptime24h)
	case "7d":
		fmt.Printf("uptime 7d:  %.2f%%\n", st.Uptime7d)
	case "30d":
		fmt.Printf("uptime 30d: %.2f%%\n", st.Uptime30d)
	case "":
		fmt.Printf("uptime 24h: %.2f%%\n", st.Uptime24h)
		fmt.Printf("uptime 7d:  %.2f%%\n", st.Uptime7d)
		fmt.Printf("uptime 30d: %.2f%%\n", st.Uptime30d)
	default:
		return fmt.Errorf("bad --window %q (want 24h, 7d or 30d)", *window)
	}
	fmt.Printf("avg response: %.0fms\n", st.AvgResponseTimeMS)
	if st.LastCheck != nil {
		fmt.Printf("last check: %s\n", st.LastCheck.Format(time.RFC3339))
	}
	return nil
}
