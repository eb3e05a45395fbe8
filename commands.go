// Copyright 2012 Google Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hanwen/go-ttwatch/transport"
	"github.com/hanwen/go-ttwatch/ttwatch"
)

func (s *session) discover(c *cli.Context) ([]transport.DeviceInfo, error) {
	if c.Bool("ble") {
		return transport.ScanBLE(s.cfg.BLE.ScanTimeout, s.cfg.BLE.NamePrefix)
	}
	return transport.FindUSB()
}

func (s *session) factory(opts ...ttwatch.Option) *ttwatch.Factory {
	return ttwatch.NewFactory(append(s.cfg.Options(s.logs), opts...)...)
}

// connect opens the one watch selected by --device.
func (s *session) connect(c *cli.Context, opts ...ttwatch.Option) (*ttwatch.Conn, error) {
	infos, err := s.discover(c)
	if err != nil {
		return nil, err
	}
	info, err := transport.Select(infos, s.cfg.Device)
	if err != nil {
		return nil, err
	}
	s.logs.CLI.Debugf("using %s", info)
	return s.factory(opts...).Open(info)
}

// withConn runs fn on a connection that is closed afterwards.
func (s *session) withConn(fn func(c *cli.Context, conn *ttwatch.Conn) error, opts ...ttwatch.Option) cli.ActionFunc {
	return func(c *cli.Context) error {
		conn, err := s.connect(c, opts...)
		if err != nil {
			return err
		}
		defer conn.Close()
		return fn(c, conn)
	}
}

// destructive is withConn for commands that need --yes. The flag is
// checked before any device is opened.
func (s *session) destructive(what string, fn func(c *cli.Context, conn *ttwatch.Conn) error, opts ...ttwatch.Option) cli.ActionFunc {
	run := s.withConn(fn, opts...)
	return func(c *cli.Context) error {
		if err := requireYes(c, what); err != nil {
			return err
		}
		return run(c)
	}
}

func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "yes",
		Usage: "confirm a destructive operation",
	}
}

func requireYes(c *cli.Context, what string) error {
	if !c.Bool("yes") {
		return fmt.Errorf("%s needs --yes", what)
	}
	return nil
}

func devicesCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "list attached watches",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "probe", Usage: "connect and query each watch"},
		},
		Action: func(c *cli.Context) error {
			infos, err := s.discover(c)
			if err != nil {
				return err
			}
			if !c.Bool("probe") {
				for _, info := range infos {
					fmt.Println(info)
				}
				return nil
			}
			ids, err := ttwatch.ProbeAll(s.factory(), infos)
			for i, id := range ids {
				if id == nil {
					fmt.Printf("%s: failed\n", infos[i].ID())
					continue
				}
				fmt.Println(id)
			}
			return err
		},
	}
}

func infoCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "show product id, firmware and BLE versions",
		Action: s.withConn(func(c *cli.Context, conn *ttwatch.Conn) error {
			id, err := conn.Identify()
			if err != nil {
				return err
			}
			info := conn.Info()
			fmt.Printf("device:   %s\n", info.ID())
			fmt.Printf("model:    %s\n", transport.ModelName(uint16(id.ProductID)))
			if info.Serial != "" {
				fmt.Printf("serial:   %s\n", info.Serial)
			}
			fmt.Printf("firmware: %s", id.Firmware)
			if v, err := ttwatch.ParseFirmwareVersion(id.Firmware); err == nil {
				fmt.Printf(" (%d.%d.%d)", v.Major(), v.Minor(), v.Patch())
			}
			fmt.Printf("\nble:      %s\n", id.BLEVersion)
			fmt.Printf("time:     %s\n", id.Time.Format(time.RFC3339))
			return nil
		}),
	}
}

func timeCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "time",
		Usage: "show the watch clock and its offset from the host",
		Action: s.withConn(func(c *cli.Context, conn *ttwatch.Conn) error {
			t, err := conn.GetWatchTime()
			if err != nil {
				return err
			}
			fmt.Printf("%s (host %+v)\n", t.Format(time.RFC3339), t.Sub(time.Now().UTC()).Round(time.Second))
			return nil
		}),
	}
}

func lsCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "list files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Usage: "only list files of this kind, eg. activity"},
		},
		Action: s.withConn(func(c *cli.Context, conn *ttwatch.Conn) error {
			kind := c.String("kind")
			l := conn.Files()
			for l.Next() {
				e := l.Entry()
				if kind != "" && e.Kind().String() != kind {
					continue
				}
				fmt.Println(e)
			}
			return l.Err()
		}),
	}
}

func progressPrinter(p ttwatch.Progress) {
	if p.Total > 0 {
		fmt.Fprintf(os.Stderr, "\r%s %d/%d bytes %d B/s", p.ID.Name(), p.Done, p.Total, p.Rate)
	} else {
		fmt.Fprintf(os.Stderr, "\r%s %d bytes %d B/s", p.ID.Name(), p.Done, p.Rate)
	}
}

func getCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "copy a file from the watch",
		ArgsUsage: "FILE-ID [DEST]",
		Action: s.withConn(func(c *cli.Context, conn *ttwatch.Conn) error {
			if c.NArg() < 1 {
				return fmt.Errorf("missing file id")
			}
			id, err := ttwatch.ParseFileID(c.Args().Get(0))
			if err != nil {
				return err
			}
			var w io.Writer = os.Stdout
			if dest := c.Args().Get(1); dest != "" {
				f, err := os.Create(dest)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := conn.ReadFile(id, w)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			s.logs.CLI.Infof("read %s: %d bytes", id.Name(), n)
			return nil
		}, ttwatch.WithProgress(progressPrinter)),
	}
}

func putCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "copy a file to the watch, replacing it",
		ArgsUsage: "FILE-ID SRC",
		Flags:     []cli.Flag{yesFlag()},
		Action: s.destructive("put", func(c *cli.Context, conn *ttwatch.Conn) error {
			if c.NArg() != 2 {
				return fmt.Errorf("usage: put FILE-ID SRC")
			}
			id, err := ttwatch.ParseFileID(c.Args().Get(0))
			if err != nil {
				return err
			}
			f, err := os.Open(c.Args().Get(1))
			if err != nil {
				return err
			}
			defer f.Close()
			size := int64(-1)
			if fi, err := f.Stat(); err == nil {
				size = fi.Size()
			}
			n, err := conn.WriteFile(id, f, size)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			s.logs.CLI.Infof("wrote %s: %d bytes", id.Name(), n)
			return nil
		}, ttwatch.WithProgress(progressPrinter)),
	}
}

func rmCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "delete a file",
		ArgsUsage: "FILE-ID",
		Flags:     []cli.Flag{yesFlag()},
		Action: s.destructive("rm", func(c *cli.Context, conn *ttwatch.Conn) error {
			id, err := ttwatch.ParseFileID(c.Args().First())
			if err != nil {
				return err
			}
			return conn.DeleteFile(id)
		}),
	}
}

func formatCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "format",
		Usage: "erase all files on the watch",
		Flags: []cli.Flag{yesFlag()},
		Action: s.destructive("format", func(c *cli.Context, conn *ttwatch.Conn) error {
			return conn.FormatWatch()
		}),
	}
}

func resetCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "reboot the watch",
		Flags: []cli.Flag{yesFlag()},
		Action: s.destructive("reset", func(c *cli.Context, conn *ttwatch.Conn) error {
			return conn.ResetDevice()
		}),
	}
}

func resetGPSCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "reset-gps",
		Usage: "restart the GPS processor",
		Action: s.withConn(func(c *cli.Context, conn *ttwatch.Conn) error {
			msg, err := conn.ResetGPS()
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		}),
	}
}

func prefsCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "show the watch preferences, or change them",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "set the watch name"},
			&cli.StringFlag{Name: "language", Usage: "set the display language"},
			&cli.StringFlag{Name: "units", Usage: "set the units, eg. metric"},
			yesFlag(),
		},
		Action: func(c *cli.Context) error {
			changes := map[string]string{}
			for _, f := range []string{"name", "language", "units"} {
				if c.IsSet(f) {
					changes[f] = c.String(f)
				}
			}
			if len(changes) > 0 {
				if err := requireYes(c, "changing preferences"); err != nil {
					return err
				}
			}
			return s.withConn(func(c *cli.Context, conn *ttwatch.Conn) error {
				p, err := conn.Preferences()
				if err != nil {
					return err
				}
				if len(changes) == 0 {
					printPrefs(p)
					return nil
				}
				for f, v := range changes {
					switch f {
					case "name":
						p.Name = v
					case "language":
						p.Language = v
					case "units":
						p.Units = v
					}
				}
				p.Modified = 0
				return conn.SetPreferences(p)
			})(c)
		},
	}
}

func printPrefs(p *ttwatch.Preferences) {
	fmt.Printf("name:      %s\n", p.Name)
	fmt.Printf("version:   %s\n", p.Version)
	if t := p.ModifiedTime(); !t.IsZero() {
		fmt.Printf("modified:  %s\n", t.Format(time.RFC3339))
	}
	if p.Language != "" {
		fmt.Printf("language:  %s\n", p.Language)
	}
	if p.Units != "" {
		fmt.Printf("units:     %s\n", p.Units)
	}
	if t := p.EphemerisTime(); !t.IsZero() {
		fmt.Printf("quickfix:  %s\n", t.Format(time.RFC3339))
	}
	if p.UserID != "" {
		fmt.Printf("user:      %s\n", p.UserID)
	}
}

func gpsUpdateCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "gps-update",
		Usage:     "write GPS QuickFix ephemeris data and restart the GPS",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-reset", Usage: "do not restart the GPS processor"},
		},
		Action: s.withConn(func(c *cli.Context, conn *ttwatch.Conn) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: gps-update FILE")
			}
			data, err := os.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			msg, err := conn.UpdateQuickFix(data, !c.Bool("no-reset"))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			if msg != "" {
				fmt.Println(msg)
			}
			s.logs.CLI.Infof("wrote %d bytes of QuickFix data", len(data))
			return nil
		}, ttwatch.WithProgress(progressPrinter)),
	}
}
