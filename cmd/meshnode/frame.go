package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/cmd/meshnode/subcmd"
	"github.com/temoto/meshnode/internal/config"
	"github.com/temoto/meshnode/protocol"
)

var frameMod = subcmd.Mod{Name: "frame", Usage: "decode frame: frame '00 16 01 05 00 00 00' [length]", Main: frameMain, NoConfig: true}

func frameMain(ctx context.Context, _ *config.Config, args []string) error {
	s, err := describeFrame(args)
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}

// describeFrame args: hex bytes (spaces allowed in one argument) and optional declared length.
func describeFrame(args []string) (string, error) {
	if len(args) == 0 || len(args) > 2 {
		return "", errors.NotValidf("frame args=%q", args)
	}
	b, err := hex.DecodeString(strings.Join(strings.Fields(args[0]), ""))
	if err != nil {
		return "", errors.NewNotValid(err, "frame hex")
	}
	length := len(b)
	if len(args) == 2 {
		if length, err = strconv.Atoi(args[1]); err != nil {
			return "", errors.NewNotValid(err, "frame length")
		}
	}
	f, err := protocol.Decode(b, length)
	if err != nil {
		return "", errors.Annotatef(err, "frame bytes=%d length=%d", len(b), length)
	}
	return fmt.Sprintf("%s\n%s", f, f.Fields()), nil
}
