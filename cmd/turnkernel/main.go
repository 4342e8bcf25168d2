package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts/schemas"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
//
// Exit codes:
//
//	0 = success
//	1 = at least one turn was refused or invalid
//	2 = usage or runtime error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "decide":
		return runDecideCmd(args[2:], os.Stdin, stdout, stderr)
	case "validate":
		return runValidateCmd(args[2:], os.Stdin, stdout, stderr)
	case "reasons":
		return runReasonsCmd(args[2:], stdout, stderr)
	case "schema":
		_, _ = stdout.Write(schemas.TurnSchema())
		return 0
	case "version":
		_, _ = fmt.Fprintf(stdout, "turnkernel contract %s\n", contracts.SchemaVersion)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: turnkernel <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Commands:")
	_, _ = fmt.Fprintln(w, "  decide    Run JSON Lines turns through the kernel and print one response per turn")
	_, _ = fmt.Fprintln(w, "  validate  Check JSON Lines turns against the turn contract")
	_, _ = fmt.Fprintln(w, "  reasons   List the stable reason codes")
	_, _ = fmt.Fprintln(w, "  schema    Print the turn JSON Schema")
	_, _ = fmt.Fprintln(w, "  version   Print the contract version")
}

type reasonRow struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Family string `json:"family"`
}

func runReasonsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("reasons", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOutput := cmd.Bool("json", false, "Output the code table as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	all := reasoncode.All()
	rows := make([]reasonRow, 0, len(all))
	for _, c := range all {
		rows = append(rows, reasonRow{
			Code:   fmt.Sprintf("0x%08X", uint32(c)),
			Name:   c.Name(),
			Family: c.Family().String(),
		})
	}

	if *jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		return 0
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(stdout, "%s  %-36s %s\n", r.Code, r.Name, r.Family)
	}
	return 0
}
