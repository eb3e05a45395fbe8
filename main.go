// Copyright 2012 Google Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hanwen/go-ttwatch/config"
	"github.com/hanwen/go-ttwatch/log"
)

func newApp() *cli.App {
	s := &session{}
	return &cli.App{
		Name:  "ttwatch",
		Usage: "talk to a TomTom GPS watch over USB or Bluetooth LE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "config file (default ~/.config/ttwatch/config.yaml)",
				EnvVars: []string{"TTWATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "verbosity of log, valid values are: trace, debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "device",
				Usage: "regexp selecting the watch by ID (usb:BUS:ADDR, ble:MAC) or serial",
			},
			&cli.BoolFlag{
				Name:  "ble",
				Usage: "connect over Bluetooth LE instead of USB",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "debug logging for the protocol and transports",
			},
			&cli.BoolFlag{
				Name:  "packets",
				Usage: "hex dump every packet",
			},
		},
		Before: s.setup,
		After:  s.teardown,
		Commands: []*cli.Command{
			devicesCmd(s),
			infoCmd(s),
			timeCmd(s),
			lsCmd(s),
			getCmd(s),
			putCmd(s),
			rmCmd(s),
			formatCmd(s),
			resetCmd(s),
			resetGPSCmd(s),
			prefsCmd(s),
			gpsUpdateCmd(s),
		},
	}
}

// session carries what the Before hook sets up to the commands.
type session struct {
	cfg      *config.Config
	logs     *log.Children
	closeLog func() error
}

func (s *session) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if l := c.String("log-level"); l != "" {
		cfg.Log.Level = l
	}
	if d := c.String("device"); d != "" {
		cfg.Device = d
	}
	if c.Bool("debug") {
		cfg.Log.Debug.Proto = true
		cfg.Log.Debug.USB = true
		cfg.Log.Debug.BLE = true
	}
	if c.Bool("packets") {
		cfg.Log.Debug.Data = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.cfg = cfg
	s.logs, s.closeLog, err = cfg.Logging()
	return err
}

func (s *session) teardown(c *cli.Context) error {
	if s.closeLog != nil {
		return s.closeLog()
	}
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ttwatch: %v\n", err)
		os.Exit(1)
	}
}
