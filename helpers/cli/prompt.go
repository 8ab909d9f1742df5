package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

// MainLoop reads operator commands until EOF or stop.
// Interactive prompt on terminal, plain lines from pipe or file.
// go-prompt Run() owns the terminal until Ctrl-D and can not be
// interrupted, so callers must not wait for MainLoop on shutdown.
func MainLoop(tag string, stop <-chan struct{}, exec func(line string), complete func(d prompt.Document) []prompt.Suggest) error {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		// TODO OptionHistory
		prompt.New(exec, complete,
			prompt.OptionPrefix(tag+" >>> "),
			prompt.OptionTitle(tag),
		).Run()
		return nil
	}
	return LineLoop(os.Stdin, stop, exec)
}

// LineLoop calls exec for each trimmed non-empty line of r.
func LineLoop(r io.Reader, stop <-chan struct{}, exec func(line string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-stop:
			return nil
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		exec(line)
	}
	return scanner.Err()
}
