package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"acolhebem-backend/internal/components/telemetry"
	"acolhebem-backend/lib/restyutil"
	"acolhebem-backend/lib/serviceutil"
)

// initTelemetry sets up slog and, when a telemetry.json5 can be found,
// opentelemetry. The returned shutdown function flushes exporters.
func initTelemetry(ctx context.Context, verbose bool) (telemetry.API, func()) {
	telemetry.InitSlog(verbose)

	var tel telemetry.API = telemetry.SlogAPI{}
	t, err := telemetry.SetupFromEnv(ctx, "psi-available")
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no telemetry.json5 found, reporting through slog only")
		return tel, func() {}
	}
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx)

	return telemetry.NewOtelAPI(tel), func() {
		err := t.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	}
}

func dumpOutput(verbose bool, dir string) restyutil.Output {
	if !verbose {
		return nil
	}
	output, err := restyutil.NewFilesystemOutput(dir)
	if err != nil {
		slog.Warn("failed to create http dump directory", "dir", dir, "err", err)
		return nil
	}
	return output
}
