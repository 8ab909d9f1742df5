package sensor

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/protocol"
)

// IIO reads Linux industrial I/O sysfs attribute in milli-units,
// e.g. /sys/bus/iio/devices/iio:device0/in_temp_input
type IIO struct {
	kind protocol.ValueID
	path string
}

func NewIIO(kind protocol.ValueID, path string) *IIO { return &IIO{kind: kind, path: path} }

func (self *IIO) Kind() protocol.ValueID { return self.kind }
func (self *IIO) String() string         { return fmt.Sprintf("iio/%s", self.path) }

func (self *IIO) Read() (int32, error) {
	b, err := ioutil.ReadFile(self.path)
	if err != nil {
		return 0, errors.Annotate(err, "iio")
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return 0, errors.Annotatef(err, "iio parse path=%s", self.path)
	}
	return int32(milli / 1000), nil
}
