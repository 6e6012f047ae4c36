package main

import (
	"flag"
	"os"

	"grimm.is/lanbridge/cmd"
	"grimm.is/lanbridge/internal/brand"
	"grimm.is/lanbridge/internal/i18n"
)

var printer = i18n.NewCLIPrinter()

func main() {
	// No command behaves like "run" with the default configuration search.
	if len(os.Args) < 2 {
		if err := cmd.RunForeground(""); err != nil {
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "run", "start":
		runFlags := flag.NewFlagSet("run", flag.ExitOnError)
		configFile := runFlags.String("config", "", "Configuration file")
		runFlags.StringVar(configFile, "c", "", "Configuration file (short)")
		runFlags.Parse(os.Args[2:])

		if err := cmd.RunForeground(*configFile); err != nil {
			os.Exit(1)
		}

	case "stop":
		if err := cmd.RunStop(); err != nil {
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := checkFlags.Bool("verbose", false, "Verbose output")
		checkFlags.BoolVar(verbose, "v", false, "Verbose output (short)")
		checkFlags.Parse(os.Args[2:])

		configFile := ""
		if len(checkFlags.Args()) > 0 {
			configFile = checkFlags.Arg(0)
		}

		if err := cmd.RunCheck(configFile, *verbose); err != nil {
			os.Exit(1)
		}

	case "init":
		path := ""
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		if err := cmd.RunInit(path); err != nil {
			os.Exit(1)
		}

	case "version":
		printer.Printf("%s version %s\n", brand.Name, brand.Version)
		printer.Printf("Build: %s (%s)\n", brand.BuildTime, brand.GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		printer.Printf(i18n.MsgUnknownCommand, os.Args[1])
		printer.Printf("\n")
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printer.Printf(`%s - %s

Usage:
  %s [command] [options]

Commands:
  run       Start forwarding and announcing on the LAN (default)
            Options: --config (-c) <file>
  stop      Stop the running instance
  check     Validate a configuration file and print a summary
            Options: --verbose (-v)
  init      Write a configuration template
  version   Show version information

Examples:
  %s                                # Run with the configuration next to the binary
  %s run -c /etc/lanbridge/lanbridge.hcl
  %s check -v lanbridge.hcl
  %s stop
`, brand.Name, brand.Description, brand.BinaryName, brand.BinaryName, brand.BinaryName, brand.BinaryName, brand.BinaryName)
}
