package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"ecbridge/host/bridge"
	"ecbridge/host/config"
	"ecbridge/host/serial"
	"ecbridge/protocol"
	"ecbridge/sim"
)

// session is an open connection to a real or simulated board
type session struct {
	port    serial.Port
	flash   *sim.Flash
	client  *bridge.Client
	flasher *bridge.Flasher
}

func open(cfg *config.Config) (*session, error) {
	s := &session{}
	if *useSim {
		s.flash = sim.NewFlash(cfg.Sim.FlashSize)
		s.flash.BusyPolls = cfg.Sim.BusyPolls
		s.port = sim.StartBridge(s.flash, protocol.WithConsole())
		glog.Infof("using simulated board with %d byte flash", cfg.Sim.FlashSize)
	} else {
		sc := serial.DefaultConfig(cfg.Device)
		sc.Baud = cfg.Baud
		port, err := serial.Open(sc)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err := port.Flush(); err != nil {
			glog.Warningf("flush %s: %v", cfg.Device, err)
		}
		s.port = port
	}

	s.client = bridge.NewClient(s.port,
		bridge.WithReadTimeout(cfg.ReadTimeout),
		bridge.WithChunkSize(cfg.ChunkSize),
	)
	s.flasher = bridge.NewFlasher(s.client,
		bridge.WithBusyTimeout(cfg.BusyTimeout),
		bridge.WithProgressCallback(printProgress),
	)
	return s, nil
}

func (s *session) Close() {
	if err := s.port.Close(); err != nil {
		glog.Warningf("close: %v", err)
	}
}

func printProgress(p bridge.Progress) {
	if p.Total == 0 {
		fmt.Fprintf(os.Stderr, "%s...\n", p.Phase)
		return
	}
	fmt.Fprintf(os.Stderr, "\r%-12s %6d/%d", p.Phase, p.Done, p.Total)
	if p.Done == p.Total {
		fmt.Fprintf(os.Stderr, " (%s)\n", p.ElapsedTime)
	}
}

// signalContext is canceled on interrupt
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}

func readImage(args []string) ([]byte, error) {
	if len(args) != 1 {
		return nil, errors.New("exactly one image file is required")
	}
	data, err := ioutil.ReadFile(args[0])
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(data) == 0 {
		return nil, errors.Errorf("%s is empty", args[0])
	}
	return data, nil
}

func info(cfg *config.Config, args []string) error {
	s, err := open(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()

	size, err := s.client.BufferSize()
	if err != nil {
		return errors.Trace(err)
	}
	id, err := s.flasher.ReadJEDEC()
	if err != nil {
		return errors.Trace(err)
	}
	status, err := s.flasher.ReadStatus()
	if err != nil {
		return errors.Trace(err)
	}

	fmt.Printf("Buffer size: %d\n", size)
	fmt.Printf("JEDEC ID:    %02X %02X %02X\n", id[0], id[1], id[2])
	fmt.Printf("Status:      0x%02X\n", status)
	return nil
}

func echo(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("exactly one argument is required")
	}
	s, err := open(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()

	resp, err := s.client.Echo([]byte(args[0]))
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Println(string(resp))
	if string(resp) != args[0] {
		return errors.Errorf("echo mismatch: sent %q, got %q", args[0], resp)
	}
	return nil
}

func read(cfg *config.Config, args []string) error {
	n := *length
	if n == 0 && *useSim {
		n = cfg.Sim.FlashSize - *address
	}
	if n <= 0 {
		return errors.New("--length is required")
	}

	s, err := open(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	data, err := s.flasher.ReadAt(ctx, *address, n)
	if err != nil {
		return errors.Trace(err)
	}

	if *output == "" {
		d := hex.Dumper(os.Stdout)
		defer d.Close()
		_, err := d.Write(data)
		return errors.Trace(err)
	}
	glog.Infof("writing %d bytes to %s", len(data), *output)
	return errors.Trace(ioutil.WriteFile(*output, data, 0644))
}

func flash(cfg *config.Config, args []string) error {
	image, err := readImage(args)
	if err != nil {
		return errors.Trace(err)
	}
	s, err := open(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Erase {
		if err := s.flasher.EraseChip(ctx); err != nil {
			return errors.Trace(err)
		}
	} else {
		glog.Warningf("programming without erase, flash must already be blank")
	}

	if err := s.flasher.ProgramImage(ctx, image); err != nil {
		return errors.Trace(err)
	}

	if cfg.Verify {
		if err := s.flasher.Verify(ctx, image); err != nil {
			return errors.Trace(err)
		}
		fmt.Fprintf(os.Stderr, "Verified %d bytes, crc 0x%04X\n", len(image), protocol.CRC16(image))
	}
	return nil
}

func verifyImage(cfg *config.Config, args []string) error {
	image, err := readImage(args)
	if err != nil {
		return errors.Trace(err)
	}
	s, err := open(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := s.flasher.Verify(ctx, image); err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(os.Stderr, "Flash matches %s, crc 0x%04X\n", args[0], protocol.CRC16(image))
	return nil
}

func eraseFlash(cfg *config.Config, args []string) error {
	s, err := open(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return errors.Trace(s.flasher.EraseChip(ctx))
}

func console(cfg *config.Config, args []string) error {
	s, err := open(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "Console on %s, press Ctrl-C to exit. The board stays in console mode until reset.\n", cfg.Device)
	err = s.client.Console(ctx, os.Stdout)
	if errors.Cause(err) == io.ErrClosedPipe {
		return nil
	}
	return errors.Trace(err)
}
