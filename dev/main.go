package main

import (
	"flag"

	"acolhebem-backend/dev/fakesite"
	"acolhebem-backend/internal/components/telemetry"
	"acolhebem-backend/lib/serviceutil"
)

// serves a fake directory so the server and psi-cli can run without touching
// the real site, point them at it with a config.local.json5:
//
//	{ directory: { base_url: "http://localhost:8081" } }
func main() {
	port := flag.Int("port", 8081, "port to serve the fake directory on")
	total := flag.Int("total", 60, "professionals in the fake directory")
	perPage := flag.Int("per-page", 12, "cards added per page")
	availableEvery := flag.Int("available-every", 3, "every n-th professional is available today")
	flag.Parse()

	telemetry.InitSlog(true)

	site := fakesite.New(fakesite.Options{
		Total:          *total,
		PerPage:        *perPage,
		AvailableEvery: *availableEvery,
	})
	err := serviceutil.StartHttpServer(serviceutil.SignalContext(), *port, site.Handler())
	if err != nil {
		serviceutil.Fatal("serve fake directory", err)
	}
}
