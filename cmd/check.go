package cmd

import (
	"errors"
	"fmt"
	"os"

	"grimm.is/lanbridge/internal/config"
	"grimm.is/lanbridge/internal/i18n"
	"grimm.is/lanbridge/internal/logging"
	"grimm.is/lanbridge/internal/services/lan"
	"grimm.is/lanbridge/internal/tui"
	"grimm.is/lanbridge/internal/whitelist"
)

// RunCheck loads and validates a configuration file and prints a summary of
// what the forwarder would do with it.
func RunCheck(configFile string, verbose bool) error {
	path, err := config.Locate(configFile)
	if err != nil {
		Printer.Fprintf(os.Stderr, i18n.MsgLoadFailed, err)
		return err
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			Printer.Fprintf(os.Stderr, i18n.MsgConfigInvalid, len(verrs))
			fmt.Fprintln(os.Stderr, tui.Problems(path, verrs))
			return err
		}
		Printer.Fprintf(os.Stderr, i18n.MsgLoadFailed, err)
		return err
	}

	wl := whitelist.New(cfg.Security.Whitelist, logging.Discard())
	payload := lan.Payload(cfg.LAN.MOTD, cfg.Local.ListenPort)
	fmt.Println(tui.ConfigSummary(path, cfg, wl, payload, verbose))
	Printer.Printf(i18n.MsgConfigValid, path)
	return nil
}

// RunInit writes a commented configuration template to path, or to the
// default location when path is empty. An existing file is never overwritten.
func RunInit(path string) error {
	if path == "" {
		located, err := config.Locate("")
		if err == nil {
			err = fmt.Errorf("configuration already exists at %s", located)
			Printer.Fprintf(os.Stderr, i18n.MsgLoadFailed, err)
			return err
		}
		path = located
	}

	if err := config.WriteTemplate(path); err != nil {
		Printer.Fprintf(os.Stderr, i18n.MsgLoadFailed, err)
		return err
	}
	Printer.Printf(i18n.MsgConfigWritten, path)
	return nil
}
