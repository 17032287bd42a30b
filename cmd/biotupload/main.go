package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/onalabs/biotupload/internal/biot"
	"github.com/onalabs/biotupload/internal/config"
	"github.com/onalabs/biotupload/internal/provision"
	"github.com/onalabs/biotupload/internal/trace"
)

func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// run wires the pipeline and finalizes the run by writing the traceability
// record whatever the upstream outcome. Only argument parsing errors are
// returned to main; every later failure is converted into a status code and
// recorded in the trace file, with the file path (or "null") printed to
// stdout.
func run(outW, errW io.Writer, args []string) error {
	cfg, err := config.Parse(args, errW)
	if err != nil {
		return err
	}

	code := provision.CodeOK

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		log.Printf("Settings: %v", err)
		code = provision.CodeAPISetup
	}

	if code == provision.CodeOK {
		baseURL, err := settings.BaseURL(cfg.Environment)
		if err != nil {
			log.Printf("API setup: %v", err)
			code = provision.CodeAPISetup
		} else {
			client := biot.NewClient(baseURL, time.Duration(settings.HTTP.TimeoutSeconds)*time.Second)
			runner := provision.NewRunner(client, time.Duration(settings.Provision.SettleDelayMs)*time.Millisecond)
			if err := runner.Run(context.Background(), cfg); err != nil {
				log.Printf("Provisioning failed: %v", err)
				code = provision.CodeOf(err)
			}
		}
	}

	writer := trace.NewWriter(cfg.OutputDirectory)

	if err := writer.Append(cfg.SerialNumber, cfg.Environment, int(code)); err != nil {
		log.Printf("Audit log: %v", err)
		// A bookkeeping failure never masks a pipeline failure
		if code == provision.CodeOK {
			code = provision.CodeAuditAppend
		}
	}

	path, err := writer.Write(cfg.SerialNumber, int(code))
	if err != nil {
		log.Printf("Trace file: %v", err)
		fmt.Fprintln(outW, "null")
		return nil
	}
	fmt.Fprintln(outW, path)
	return nil
}
