package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

const (
	// uereMeters approximates the user equivalent range error used to turn HDOP into metres.
	uereMeters = 5.0
	knotsToMps = 0.514444
)

var errNoFix = errors.New("no valid GPS data found")

// DeviceSensorProvider reads fixes from a GPS receiver connected via serial port.
type DeviceSensorProvider struct {
	port        string        // Serial port to which the GPS device is connected
	baudRate    int           // Baud rate for the serial communication
	readTimeout time.Duration // Per-read timeout on the port

	openPort func(*serial.Config) (io.ReadCloser, error)
	now      func() time.Time
}

// NewDeviceSensorProvider creates a GPS source for the given port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int, readTimeout time.Duration) *DeviceSensorProvider {
	return &DeviceSensorProvider{
		port:        port,
		baudRate:    baudRate,
		readTimeout: readTimeout,
		openPort: func(c *serial.Config) (io.ReadCloser, error) {
			return serial.OpenPort(c)
		},
		now: time.Now,
	}
}

func (d *DeviceSensorProvider) Name() string { return SourceGPS }

func (d *DeviceSensorProvider) Permission() Permission { return PermissionFine }

// GetLocation opens the port and returns the first valid fix it reads.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Position, error) {
	c := &serial.Config{Name: d.port, Baud: d.baudRate, ReadTimeout: d.readTimeout}
	s, err := d.openPort(c)
	if err != nil {
		return Position{}, fmt.Errorf("failed to open GPS port %s: %w", d.port, err)
	}
	defer s.Close()

	return readFix(ctx, s, d.now().UTC())
}

// Close is a no-op, the port is only held open for the duration of a read.
func (d *DeviceSensorProvider) Close() error { return nil }

// readFix scans NMEA sentences until a valid GGA fix is found. The latest valid
// RMC sentence seen before it supplies speed, course and the date.
func readFix(ctx context.Context, r io.Reader, now time.Time) (Position, error) {
	var rmc *nmea.RMC

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Position{}, err
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			// Unsupported or corrupt sentences are common on a live feed
			continue
		}

		switch s := sentence.(type) {
		case nmea.RMC:
			if s.Validity == nmea.ValidRMC {
				rmc = &s
			}
		case nmea.GGA:
			if s.FixQuality == nmea.Invalid {
				continue
			}
			return ggaPosition(s, rmc, now), nil
		}
	}

	if err := scanner.Err(); err != nil {
		return Position{}, err
	}

	return Position{}, errNoFix
}

func ggaPosition(gga nmea.GGA, rmc *nmea.RMC, now time.Time) Position {
	altitude := gga.Altitude
	pos := Position{
		Latitude:  gga.Latitude,
		Longitude: gga.Longitude,
		Accuracy:  gga.HDOP * uereMeters,
		Source:    SourceGPS,
		Altitude:  &altitude,
		Time:      now,
	}

	date := nmea.Date{Valid: true, DD: now.Day(), MM: int(now.Month()), YY: now.Year() % 100}
	if rmc != nil {
		speed := rmc.Speed * knotsToMps
		course := rmc.Course
		pos.Speed = &speed
		pos.Heading = &course
		if rmc.Date.Valid {
			date = rmc.Date
		}
	}
	if gga.Time.Valid {
		year := 2000 + date.YY
		if year > now.Year()+1 {
			year -= 100
		}
		pos.Time = time.Date(year, time.Month(date.MM), date.DD,
			gga.Time.Hour, gga.Time.Minute, gga.Time.Second, gga.Time.Millisecond*int(time.Millisecond), time.UTC)
	}
	return pos
}
