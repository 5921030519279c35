package main

import (
	"fmt"
	"iotd/internal/di"
	"iotd/internal/structures"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "iotd: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	var flags structures.CliFlags

	flagSet := pflag.NewFlagSet("iotd", pflag.ContinueOnError)
	flagSet.StringVarP(&flags.ConfigPath, "config", "c", "configs/iotd.yaml", "path to the YAML configuration file")
	flagSet.BoolVar(&flags.DebugMode, "debug", false, "mirror logs to the console")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	_, err := di.InitApp(&flags)
	return err
}
