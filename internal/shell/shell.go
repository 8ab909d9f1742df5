// Package shell is the hub operator command line.
package shell

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/meshnode/internal/role"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
)

const DefaultTimeout = 5 * time.Second

// Doer runs fn on the node event loop, see node.Node.Do
type Doer interface {
	Do(ctx context.Context, fn func(role.Role) error) error
}

type command struct {
	name  string
	usage string
	help  []string
	run   func(h *role.Hub, args []string) (string, error)
}

type Shell struct {
	log      *log2.Log
	node     Doer
	out      io.Writer
	timeout  time.Duration
	commands []command
	status   map[string]func() string
}

func New(node Doer, out io.Writer, log *log2.Log) *Shell {
	self := &Shell{
		log:     log,
		node:    node,
		out:     out,
		timeout: DefaultTimeout,
		status:  make(map[string]func() string),
	}
	self.commands = []command{
		{"datatx", "Start/Stop data transfer from relay",
			[]string{"datatx get", "datatx set start", "datatx set stop"}, cmdDataTx},
		{"datapollrt", "Data poll rate in seconds",
			[]string{"datapollrt get", "datapollrt set 5"}, cmdDataPollRate},
		{"senpollrt", "Sensor data poll rate in seconds",
			[]string{"senpollrt get temp", "senpollrt set light 10"}, cmdSenPollRate},
		{"senpow", "Sensor power status",
			[]string{"senpow get temp", "senpow set light sleep", "senpow set light wake"}, cmdSenPower},
		{"log", "Toggle logging of incoming telemetry", []string{"log", "l"}, cmdLog},
		{"status", "Node state and cached values", []string{"status"}, nil},
		{"help", "This text", []string{"help"}, nil},
	}
	return self
}

// AddStatus appends named line to `status` output, f runs off event loop.
func (self *Shell) AddStatus(name string, f func() string) { self.status[name] = f }

// Exec runs one line and prints result or error.
func (self *Shell) Exec(ctx context.Context, line string) {
	out, err := self.Run(ctx, line)
	if err != nil {
		fmt.Fprintf(self.out, "error: %v\n", err)
		return
	}
	if out != "" {
		fmt.Fprintln(self.out, out)
	}
}

func (self *Shell) Run(ctx context.Context, line string) (string, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return "", nil
	}
	name := strings.ToLower(args[0])
	if name == "l" {
		name = "log"
	}
	self.log.Debugf("shell exec %q", line)
	switch name {
	case "help":
		return self.help(), nil
	case "status":
		return self.statusString(ctx)
	}
	for _, c := range self.commands {
		if c.name != name || c.run == nil {
			continue
		}
		var result string
		err := self.do(ctx, func(h *role.Hub) error {
			var e error
			result, e = c.run(h, args[1:])
			return e
		})
		if errors.IsNotValid(err) || errors.IsNotSupported(err) {
			err = errors.Errorf("%v\nusage:\n  %s", err, strings.Join(c.help, "\n  "))
		}
		return result, err
	}
	return "", errors.NotSupportedf("command %q, try help", args[0])
}

func (self *Shell) do(ctx context.Context, fn func(*role.Hub) error) error {
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	return self.node.Do(ctx, func(r role.Role) error {
		h, ok := r.(*role.Hub)
		if !ok {
			return errors.Errorf("operator commands on role=%s are not available", r.Context().Kind)
		}
		return fn(h)
	})
}

func (self *Shell) help() string {
	var sb strings.Builder
	for _, c := range self.commands {
		fmt.Fprintf(&sb, "%-10s %s\n", c.name, c.usage)
		for _, h := range c.help {
			fmt.Fprintf(&sb, "    >>> %s\n", h)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (self *Shell) statusString(ctx context.Context) (string, error) {
	var s string
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	err := self.node.Do(ctx, func(r role.Role) error {
		s = r.Context().String()
		return nil
	})
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(self.status))
	for name := range self.status {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s += fmt.Sprintf("\n%s: %s", name, self.status[name]())
	}
	return s, nil
}

// Complete is go-prompt completer.
func (self *Shell) Complete(d prompt.Document) []prompt.Suggest {
	words := strings.Fields(d.TextBeforeCursor())
	if len(words) > 1 || (len(words) == 1 && strings.HasSuffix(d.TextBeforeCursor(), " ")) {
		return nil
	}
	ss := make([]prompt.Suggest, 0, len(self.commands))
	for _, c := range self.commands {
		ss = append(ss, prompt.Suggest{Text: c.name, Description: c.usage})
	}
	return prompt.FilterHasPrefix(ss, d.GetWordBeforeCursor(), true)
}

func usage(format string, args ...interface{}) error { return errors.NotValidf(format, args...) }

func cmdDataTx(h *role.Hub, args []string) (string, error) {
	switch {
	case len(args) == 1 && args[0] == "get":
		if h.Streaming() {
			return "datatx=start", nil
		}
		return "datatx=stop", nil
	case len(args) == 2 && args[0] == "set" && args[1] == "start":
		return "ok", h.StartTransfer()
	case len(args) == 2 && args[0] == "set" && args[1] == "stop":
		return "ok", h.StopTransfer()
	}
	return "", usage("datatx args=%q", args)
}

func cmdDataPollRate(h *role.Hub, args []string) (string, error) {
	switch {
	case len(args) == 1 && args[0] == "get":
		return fmt.Sprintf("datapollrt=%d", h.PollInterval()), nil
	case len(args) == 2 && args[0] == "set":
		n, err := parseSeconds(args[1])
		if err != nil {
			return "", err
		}
		return "ok", h.SetPollInterval(n)
	}
	return "", usage("datapollrt args=%q", args)
}

func cmdSenPollRate(h *role.Hub, args []string) (string, error) {
	if len(args) < 2 {
		return "", usage("senpollrt args=%q", args)
	}
	v, ok := protocol.ParseValueID(args[1])
	if !ok {
		return "", usage("senpollrt sensor=%q", args[1])
	}
	switch {
	case len(args) == 2 && args[0] == "get":
		return fmt.Sprintf("senpollrt %s=%d", v, h.SensorPoll(v)), nil
	case len(args) == 3 && args[0] == "set":
		n, err := parseSeconds(args[2])
		if err != nil {
			return "", err
		}
		return "ok", h.SetSensorPoll(v, n)
	}
	return "", usage("senpollrt args=%q", args)
}

func cmdSenPower(h *role.Hub, args []string) (string, error) {
	if len(args) < 2 {
		return "", usage("senpow args=%q", args)
	}
	v, ok := protocol.ParseValueID(args[1])
	if !ok {
		return "", usage("senpow sensor=%q", args[1])
	}
	switch {
	case len(args) == 2 && args[0] == "get":
		return fmt.Sprintf("senpow %s=%s", v, powerName(h.SensorPower(v))), nil
	case len(args) == 3 && args[0] == "set":
		p, ok := parsePower(args[2])
		if !ok {
			return "", usage("senpow power=%q", args[2])
		}
		return "ok", h.SetSensorPower(v, p)
	}
	return "", usage("senpow args=%q", args)
}

func cmdLog(h *role.Hub, args []string) (string, error) {
	if h.ToggleFrameLog() {
		return "telemetry log on", nil
	}
	return "telemetry log off", nil
}

func parseSeconds(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, usage("seconds=%q", s)
	}
	return uint32(n), nil
}

func parsePower(s string) (protocol.Power, bool) {
	switch s {
	case "wake", "awake":
		return protocol.PowerAwake, true
	case "sleep":
		return protocol.PowerSleep, true
	}
	return protocol.PowerNone, false
}

func powerName(p protocol.Power) string {
	if p == protocol.PowerSleep {
		return "sleep"
	}
	return "wake"
}
