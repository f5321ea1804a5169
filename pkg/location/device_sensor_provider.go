package location

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

// DeviceSensorProvider reads GGA fixes from a GPS receiver on a serial port.
type DeviceSensorProvider struct {
	port     string
	baudRate int

	mu   sync.Mutex
	open *serial.Port
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int) *DeviceSensorProvider {
	return &DeviceSensorProvider{
		port:     port,
		baudRate: baudRate,
	}
}

// GetLocation scans the serial stream until the first GGA sentence carrying a fix.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Coordinate, error) {
	s, err := serial.OpenPort(&serial.Config{Name: d.port, Baud: d.baudRate})
	if err != nil {
		return Coordinate{}, fmt.Errorf("failed to open gps port %s: %w", d.port, err)
	}
	d.mu.Lock()
	d.open = s
	d.mu.Unlock()
	defer d.release(s)

	// Closing the port unblocks the scanner when the caller gives up.
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	return readFix(ctx, bufio.NewScanner(s))
}

// Close releases the serial port if a read is in progress.
func (d *DeviceSensorProvider) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open == nil {
		return nil
	}
	err := d.open.Close()
	d.open = nil
	return err
}

func (d *DeviceSensorProvider) release(s *serial.Port) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open == s {
		s.Close()
		d.open = nil
	}
}

// readFix returns the first GGA sentence with a non-zero fix quality.
func readFix(ctx context.Context, scanner *bufio.Scanner) (Coordinate, error) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$GPGGA") && !strings.HasPrefix(line, "$GNGGA") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}
		gga, ok := sentence.(nmea.GGA)
		if !ok || gga.FixQuality == nmea.Invalid {
			continue
		}
		return Coordinate{
			Latitude:  gga.Latitude,
			Longitude: gga.Longitude,
			Accuracy:  gga.HDOP, // HDOP as a proxy for accuracy
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}
	if err := scanner.Err(); err != nil {
		return Coordinate{}, err
	}
	return Coordinate{}, ErrNoLocation
}
