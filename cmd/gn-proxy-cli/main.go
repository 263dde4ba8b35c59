package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// Version is set at build time
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	cli := &CLI{
		BaseURL: getEnv("GNPROXY_URL", "http://localhost:8080"),
		Token:   os.Getenv("GNPROXY_TOKEN"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}

	var err error
	switch cmd {
	case "available":
		err = cli.availableCommand(args)
	case "run":
		err = cli.runCommand(args)
	case "resource", "resources":
		err = cli.resourceCommand(args)
	case "health":
		err = cli.healthCommand(args)
	case "token":
		err = tokenCommand(args)
	case "version":
		fmt.Printf("gn-proxy-cli %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`gn-proxy-cli - gn-proxy Command Line Interface

Usage:
  gn-proxy-cli <command> [subcommand] [options]

Environment Variables:
  GNPROXY_URL     Base URL of the proxy (default: http://localhost:8080)
  GNPROXY_TOKEN   Admin bearer token
  GNPROXY_SECRET  Admin signing secret (token command only)

Commands:
  available  List permitted actions
    --resource=ID [--user=ID]

  run        Run an action
    --resource=ID --branch=B --action=A [--user=ID] [--<param>=VALUE...]

  resource   Manage resources (requires GNPROXY_TOKEN)
    add     --type=T --owner=ID [--id=ID] [--data=K=V,K=V] [--mask=BRANCH=LEVEL,...]
    grant   <id> --user=ID --branch=B --level=N
    revoke  <id> --user=ID --branch=B

  health     Check server health
    live    Liveness check
    ready   Readiness check

  token      Mint an admin token from GNPROXY_SECRET
    --subject=ID [--ttl=DURATION]

  version    Show CLI version
  help       Show this help
`)
}
