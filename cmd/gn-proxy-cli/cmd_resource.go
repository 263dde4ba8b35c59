package main

import (
	"fmt"
	"strconv"
)

// ---- Query Commands ----

func (c *CLI) availableCommand(args []string) error {
	opts := parseArgs(args)
	if opts["resource"] == "" {
		return fmt.Errorf("--resource is required")
	}

	resp, err := c.get("/api/v1/available" + buildQuery(opts))
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) runCommand(args []string) error {
	opts := parseArgs(args)
	if opts["resource"] == "" || opts["branch"] == "" || opts["action"] == "" {
		return fmt.Errorf("--resource, --branch, and --action are required")
	}

	resp, err := c.get("/api/v1/run-action" + buildQuery(opts))
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

// ---- Resource Commands ----

func (c *CLI) resourceCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("resource subcommand required (add, grant, revoke)")
	}

	switch args[0] {
	case "add":
		return c.resourceAdd(args[1:])
	case "grant":
		return c.resourceGrant(args[1:])
	case "revoke":
		return c.resourceRevoke(args[1:])
	default:
		return fmt.Errorf("unknown resource subcommand: %s", args[0])
	}
}

func (c *CLI) resourceAdd(args []string) error {
	opts := parseArgs(args)
	if opts["type"] == "" || opts["owner"] == "" {
		return fmt.Errorf("--type and --owner are required")
	}

	mask := make(map[string]int)
	for branch, level := range parsePairs(opts["mask"]) {
		n, err := strconv.Atoi(level)
		if err != nil {
			return fmt.Errorf("invalid mask level %q for branch %q", level, branch)
		}
		mask[branch] = n
	}

	body := map[string]interface{}{
		"id":           opts["id"],
		"type":         opts["type"],
		"owner_id":     opts["owner"],
		"data":         parsePairs(opts["data"]),
		"default_mask": mask,
	}

	resp, err := c.post("/api/v1/admin/resources", body)
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) resourceGrant(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("resource id required")
	}
	id := args[0]
	opts := parseArgs(args[1:])
	if opts["user"] == "" || opts["branch"] == "" || opts["level"] == "" {
		return fmt.Errorf("--user, --branch, and --level are required")
	}
	level, err := strconv.Atoi(opts["level"])
	if err != nil {
		return fmt.Errorf("invalid level %q", opts["level"])
	}

	resp, err := c.post("/api/v1/admin/resources/"+id+"/grant", map[string]interface{}{
		"user":   opts["user"],
		"branch": opts["branch"],
		"level":  level,
	})
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) resourceRevoke(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("resource id required")
	}
	id := args[0]
	opts := parseArgs(args[1:])
	if opts["user"] == "" || opts["branch"] == "" {
		return fmt.Errorf("--user and --branch are required")
	}

	resp, err := c.post("/api/v1/admin/resources/"+id+"/revoke", map[string]interface{}{
		"user":   opts["user"],
		"branch": opts["branch"],
	})
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}
