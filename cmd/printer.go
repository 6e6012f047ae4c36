package cmd

import (
	"grimm.is/lanbridge/internal/i18n"
)

// Printer is the global message printer for the CLI
var Printer = i18n.NewCLIPrinter()
