// Command ecbridge-host talks to a parallel bus bridge board over serial:
// it identifies and programs the SPI flash behind an embedded controller
// and runs the peripheral console.
package main

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"ecbridge/host/config"
	"ecbridge/host/flagenv"
)

const (
	envPrefix = "ECBRIDGE_"
)

var (
	configFile  = flag.String("config", "", "YAML configuration file")
	device      = flag.String("device", "", "Serial device of the bridge board")
	baud        = flag.Int("baud", 0, "Serial baud rate")
	readTimeout = flag.Duration("read-timeout", 0, "Timeout for one command response")
	chunkSize   = flag.Int("chunk-size", 0, "Largest command body, 2..128")
	erase       = flag.Bool("erase", true, "Erase the flash before programming")
	verify      = flag.Bool("verify", true, "Verify the flash after programming")
	useSim      = flag.Bool("sim", false, "Run against an in-process simulated board instead of a serial port")
	address     = flag.Int("address", 0, "Flash address for read")
	length      = flag.Int("length", 0, "Number of bytes for read (0 = whole flash in --sim mode)")
	output      = flag.String("output", "", "Output file for read (default: hex dump to stdout)")

	hiddenFlags = []string{
		"alsologtostderr",
		"log_backtrace_at",
		"log_dir",
		"logtostderr",
		"stderrthreshold",
		"vmodule",
	}
)

type command struct {
	name    string
	handler handler
	args    string
	short   string
}

type handler func(cfg *config.Config, args []string) error

var commands = []command{
	{"info", info, "", "Show buffer size and flash JEDEC ID"},
	{"echo", echo, "<text>", "Send text through the echo command"},
	{"read", read, "", "Read flash contents (--address, --length, --output)"},
	{"flash", flash, "<image>", "Erase, program and verify the flash"},
	{"verify", verifyImage, "<image>", "Compare the flash with an image"},
	{"erase", eraseFlash, "", "Erase the whole flash"},
	{"console", console, "", "Switch the board to peripheral console mode and print its output"},
}

func initFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	for _, f := range hiddenFlags {
		flag.CommandLine.MarkHidden(f)
	}
	flag.Usage = usage
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %-8s %s\n", c.name, c.args, c.short)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nUnset flags are read from %s<FLAG> environment variables.\n", envPrefix)
}

// loadConfig merges the config file and the flags set on the command line
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return nil, errors.Trace(err)
		}
	}

	if flag.CommandLine.Changed("device") {
		cfg.Device = *device
	}
	if flag.CommandLine.Changed("baud") {
		cfg.Baud = *baud
	}
	if flag.CommandLine.Changed("read-timeout") {
		cfg.ReadTimeout = *readTimeout
	}
	if flag.CommandLine.Changed("chunk-size") {
		cfg.ChunkSize = *chunkSize
	}
	if flag.CommandLine.Changed("erase") {
		cfg.Erase = *erase
	}
	if flag.CommandLine.Changed("verify") {
		cfg.Verify = *verify
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

func run() error {
	if flag.NArg() < 1 {
		usage()
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return errors.Trace(err)
	}

	for _, c := range commands {
		if c.name == flag.Arg(0) {
			if err := c.handler(cfg, flag.Args()[1:]); err != nil {
				return errors.Annotatef(err, "%s", c.name)
			}
			return nil
		}
	}

	usage()
	return errors.Errorf("unknown command %q", flag.Arg(0))
}

func main() {
	initFlags()
	flag.Parse()
	if err := flagenv.Parse(envPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer glog.Flush()

	if err := run(); err != nil {
		glog.Infof("Error: %+v", errors.ErrorStack(err))
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		glog.Flush()
		os.Exit(1)
	}
}
