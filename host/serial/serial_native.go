package serial

import (
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/tarm/serial"
)

// NativePort is a bridge board attached through an OS serial device
type NativePort struct {
	port *serial.Port
	cfg  *Config
}

var _ Port = (*NativePort)(nil)

// Open opens a native serial port
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open serial port %s", cfg.Device)
	}
	glog.V(1).Infof("opened %s at %d baud", cfg.Device, cfg.Baud)

	return &NativePort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read reads data from the serial port
func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port. Closing twice is a no-op.
func (p *NativePort) Close() error {
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	glog.V(1).Infof("closed %s", p.cfg.Device)
	return errors.Trace(err)
}

// Device returns the OS device name
func (p *NativePort) Device() string {
	return p.cfg.Device
}

// Flush discards data received but not yet read
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
