package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jgarte/gn-proxy/api"
)

// ---- Health Commands ----

func (c *CLI) healthCommand(args []string) error {
	sub := "ready"
	if len(args) > 0 {
		sub = args[0]
	}

	var path string
	switch sub {
	case "live":
		path = "/api/v1/healthz"
	case "ready":
		path = "/api/v1/ready"
	default:
		return fmt.Errorf("unknown health subcommand: %s", sub)
	}

	resp, err := c.get(path)
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

// ---- Token Command ----

func tokenCommand(args []string) error {
	secret := os.Getenv("GNPROXY_SECRET")
	if secret == "" {
		return fmt.Errorf("GNPROXY_SECRET must be set")
	}

	opts := parseArgs(args)
	subject := opts["subject"]
	if subject == "" {
		return fmt.Errorf("--subject is required")
	}

	ttl := 24 * time.Hour
	if opts["ttl"] != "" {
		parsed, err := time.ParseDuration(opts["ttl"])
		if err != nil {
			return fmt.Errorf("invalid ttl %q", opts["ttl"])
		}
		ttl = parsed
	}

	token, err := api.SignAdminToken([]byte(secret), subject, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
