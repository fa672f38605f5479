package main

import (
	"acolhebem-backend/cmd/psi-cli/commands"
	"acolhebem-backend/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
