package sensor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
	"golang.org/x/sys/unix"
)

var ErrNoSample = errors.New("sensor: no sample yet")

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// UART keeps the latest decimal line received from a serial port.
// Read never blocks.
type UART struct {
	log  *log2.Log
	kind protocol.ValueID
	path string
	rc   io.ReadCloser
	mu   sync.Mutex
	last int32
	ok   bool
	err  error
}

func OpenUART(kind protocol.ValueID, path string, baud int, log *log2.Log) (*UART, error) {
	if baud == 0 {
		baud = 115200
	}
	speed, ok := baudRates[baud]
	if !ok {
		return nil, errors.NotSupportedf("uart baud=%d", baud)
	}
	f, err := os.OpenFile(path, syscall.O_RDWR|syscall.O_NOCTTY, 0600)
	if err != nil {
		return nil, errors.Annotate(err, "uart open")
	}
	if err = setRaw(int(f.Fd()), speed); err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "uart termios path=%s", path)
	}
	self := NewUARTReader(kind, path, f, log)
	return self, nil
}

// NewUARTReader starts line reader over rc.
func NewUARTReader(kind protocol.ValueID, tag string, rc io.ReadCloser, log *log2.Log) *UART {
	self := &UART{log: log, kind: kind, path: tag, rc: rc}
	go self.readLoop()
	return self
}

func setRaw(fd int, speed uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

func (self *UART) Kind() protocol.ValueID { return self.kind }
func (self *UART) String() string         { return fmt.Sprintf("uart/%s", self.path) }

func (self *UART) Read() (int32, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.ok {
		if self.err != nil {
			return 0, self.err
		}
		return 0, ErrNoSample
	}
	return self.last, nil
}

func (self *UART) Close() error { return self.rc.Close() }

func (self *UART) readLoop() {
	s := bufio.NewScanner(self.rc)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseInt(line, 10, 32)
		if err != nil {
			self.log.Debugf("%s skip line=%q", self, line)
			continue
		}
		self.mu.Lock()
		self.last, self.ok = int32(v), true
		self.mu.Unlock()
	}
	err := s.Err()
	if err == nil {
		err = io.EOF
	}
	self.mu.Lock()
	self.ok = false
	self.err = errors.Annotatef(err, "%s closed", self)
	self.mu.Unlock()
}
