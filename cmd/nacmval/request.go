package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vyrodovalexey/nacmval/internal/nacm"
)

// jsonResult is the JSON response shape for batch and single-request JSON
// output.
type jsonResult struct {
	Decision  string `json:"decision"`
	User      string `json:"user"`
	Module    string `json:"module,omitempty"`
	RPC       string `json:"rpc,omitempty"`
	Operation string `json:"operation"`
	Path      string `json:"path,omitempty"`
	Context   string `json:"context,omitempty"`
	Command   string `json:"command,omitempty"`
	ShouldLog bool   `json:"should_log"`
}

// newJSONResult builds the response shape from a request and its result.
func newJSONResult(req *nacm.AccessRequest, result nacm.ValidationResult) *jsonResult {
	return &jsonResult{
		Decision:  string(result.Effect),
		User:      req.User,
		Module:    req.ModuleName,
		RPC:       req.RPCName,
		Operation: string(req.Operation),
		Path:      req.Path,
		Context:   req.Context,
		Command:   req.Command,
		ShouldLog: result.ShouldLog,
	}
}

// runSingle evaluates the request described by flags and exits with the
// decision's exit code.
func runSingle(engine *nacm.Engine, flags cliFlags) {
	if flags.user == "" {
		fmt.Fprintln(os.Stderr, "error: -user is required for single request mode")
		os.Exit(exitFatal)
	}
	if flags.operation == "" {
		fmt.Fprintln(os.Stderr, "error: -operation is required for single request mode")
		os.Exit(exitFatal)
	}

	operation, err := nacm.ParseOperation(flags.operation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitFatal)
	}

	req := &nacm.AccessRequest{
		User:       flags.user,
		Operation:  operation,
		ModuleName: flags.module,
		RPCName:    flags.rpc,
		Path:       flags.path,
		Context:    flags.context,
		Command:    flags.command,
	}

	result := engine.Authorize(context.Background(), req)
	outputResult(os.Stdout, req, result, flags.format, flags.verbose)

	if result.Effect == nacm.EffectPermit {
		os.Exit(exitPermit)
	}
	os.Exit(exitDeny)
}

// runBatch reads JSON requests line by line and writes one JSON result per
// line. Malformed lines are reported and skipped; I/O errors terminate the
// loop.
func runBatch(engine *nacm.Engine, in io.Reader, out, errOut io.Writer) {
	scanner := bufio.NewScanner(in)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req nacm.AccessRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			fmt.Fprintf(errOut, "invalid JSON: %v\n", err)
			continue
		}
		op, err := nacm.ParseOperation(string(req.Operation))
		if err != nil {
			fmt.Fprintf(errOut, "invalid request: %v\n", err)
			continue
		}
		req.Operation = op

		result := engine.Authorize(context.Background(), &req)
		if err := encoder.Encode(newJSONResult(&req, result)); err != nil {
			fmt.Fprintf(errOut, "error writing result: %v\n", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(errOut, "error reading input: %v\n", err)
	}
}

// outputResult renders one decision in the requested format.
func outputResult(out io.Writer, req *nacm.AccessRequest, result nacm.ValidationResult, format string, verbose bool) {
	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(newJSONResult(req, result))

	case "exit-code":
		// Exit code only, no output.

	default:
		decision := "DENY"
		if result.Effect == nacm.EffectPermit {
			decision = "PERMIT"
		}
		logIndicator := ""
		if result.ShouldLog {
			logIndicator = " [LOGGED]"
		}

		if !verbose {
			fmt.Fprintf(out, "%s%s\n", decision, logIndicator)
			return
		}

		fmt.Fprintf(out, "User: %s\n", req.User)
		if req.ModuleName != "" {
			fmt.Fprintf(out, "Module: %s\n", req.ModuleName)
		}
		if req.RPCName != "" {
			fmt.Fprintf(out, "RPC: %s\n", req.RPCName)
		}
		fmt.Fprintf(out, "Operation: %s\n", req.Operation)
		if req.Path != "" {
			fmt.Fprintf(out, "Path: %s\n", req.Path)
		}
		if req.Context != "" {
			fmt.Fprintf(out, "Context: %s\n", req.Context)
		}
		if req.Command != "" {
			fmt.Fprintf(out, "Command: %s\n", req.Command)
		}
		fmt.Fprintf(out, "Decision: %s%s\n", decision, logIndicator)
	}
}
