package protocol

import "ecbridge/parallel"

// handleBufferSize reports the buffer capacity in the first byte
func handleBufferSize(d *Dispatcher, body []byte) error {
	for i := range body {
		body[i] = 0
	}
	body[0] = byte(BufferSize - 1)
	return d.reply(body)
}

// handleEcho sends the body straight back
func handleEcho(d *Dispatcher, body []byte) error {
	if err := d.readBody(body); err != nil {
		return err
	}
	return d.reply(body)
}

// handleRead relays data cycles from the bus to serial
func handleRead(d *Dispatcher, body []byte) error {
	if err := d.flushAddress(); err != nil {
		return err
	}
	if _, err := d.engine.Read(body); err != nil {
		return err
	}
	return d.reply(body)
}

// handleWrite relays the body from serial to bus data cycles
func handleWrite(d *Dispatcher, body []byte) error {
	if err := d.readBody(body); err != nil {
		return err
	}
	if err := d.flushAddress(); err != nil {
		return err
	}
	if _, err := d.engine.Write(body); err != nil {
		return err
	}
	return d.ack(len(body))
}

// handleProgram runs accelerated programming on the body. The session
// stays in progress until a different command arrives.
func handleProgram(d *Dispatcher, body []byte) error {
	if err := d.readBody(body); err != nil {
		return err
	}
	if _, err := d.program.Program(d.spi, &d.session.Program, body); err != nil {
		return err
	}
	d.session.Program.Initialized = true
	return d.ack(len(body))
}

// handleConsole turns the board into a bus peripheral and echoes every
// byte a host writes with data cycles. It only returns on error.
func handleConsole(d *Dispatcher, body []byte) error {
	if err := d.reply([]byte(ConsoleBanner)); err != nil {
		return err
	}

	// Reconfigure as a peripheral
	if err := d.engine.Reset(parallel.Peripheral); err != nil {
		return err
	}

	slot := &body[0]
	for {
		kind, ok, err := d.engine.PeripheralCycle(slot)
		if err != nil {
			return err
		}
		if ok && kind == parallel.DataWrite {
			if err := d.reply(body[:1]); err != nil {
				return err
			}
		}
	}
}
