package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: documentor <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Run the job workers with health, metrics and file endpoints")
	fmt.Fprintln(w, "  generate   Render a template for every row of a data file")
	fmt.Fprintln(w, "  status     Show the state of a queued job")
	fmt.Fprintln(w, "  verify     Check a scanned certificate payload")
	fmt.Fprintln(w, "  detect     List the variables of a docx template")
	fmt.Fprintln(w, "  doctor     Check converters, storage and the job queue")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'documentor help <command>' for details on a specific command.")
}

func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: documentor serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Connect to the job queue and process generation and email jobs.")
	fmt.Fprintln(w, "Without a reachable queue, jobs run inline.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Endpoints:")
	fmt.Fprintln(w, "  GET /healthz    Queue readiness")
	fmt.Fprintln(w, "  GET /metrics    Prometheus metrics")
	fmt.Fprintln(w, "  GET /files/*    Stored documents (signed URLs when a storage secret is set)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --addr <addr>         Listen address (overrides server.addr)")
	printCommonFlags(w)
}

func printGenerateUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: documentor generate --template <file> --rows <file> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render one document per row into an output directory. Runs inline,")
	fmt.Fprintln(w, "without the job queue, on a throwaway database.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -t, --template <file>     Template file (.docx, .pdf, .png, .jpg)")
	fmt.Fprintln(w, "  -m, --meta <file>         Template metadata (YAML or JSON): fields, formats, styles, qrCodes")
	fmt.Fprintln(w, "  -r, --rows <file>         Rows as a JSON array of objects")
	fmt.Fprintln(w, "  -o, --output <dir>        Output directory (default \"out\")")
	fmt.Fprintln(w, "  -f, --format <s>          Output format for docx templates: docx, pdf")
	printCommonFlags(w)
}

func printStatusUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: documentor status <job-id> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Print the state, progress and result of a queued job as JSON.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --cancel              Cancel the job if it has not started")
	printCommonFlags(w)
}

func printVerifyUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: documentor verify [payload] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check the signature, expiry and document hash of a certificate payload.")
	fmt.Fprintln(w, "Exits 1 when the certificate is not valid.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -p, --payload-file <file> Read the payload from a file")
	fmt.Fprintln(w, "  -d, --document <file>     Document to compare with a bound hash")
	printCommonFlags(w)
}

func printDetectUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: documentor detect <template.docx> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "List the {{variables}} of a docx template, one per line.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                Print a JSON array")
}

func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: documentor doctor [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check the office suite, the browser, the temp directory and the job queue.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                Output in JSON format")
	printCommonFlags(w)
}

func printCommonFlags(w io.Writer) {
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -v, --verbose             Log at debug level")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "serve":
		printServeUsage(env.Stdout)
	case "generate":
		printGenerateUsage(env.Stdout)
	case "status":
		printStatusUsage(env.Stdout)
	case "verify":
		printVerifyUsage(env.Stdout)
	case "detect":
		printDetectUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: documentor version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: documentor help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
