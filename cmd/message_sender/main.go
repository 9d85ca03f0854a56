package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/danmuck/msgslot/internal/client"
	"github.com/danmuck/msgslot/internal/logging"
	"github.com/danmuck/msgslot/internal/slot"
)

func main() {
	configPath := flag.String("config", "", "client config path (toml)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: message_sender [-config client.toml] <addr> <slot> <channel> <message>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 4 {
		flag.Usage()
		os.Exit(1)
	}
	logging.ConfigureRuntime("message_sender")

	cfg := client.DefaultConfig()
	if *configPath != "" {
		loaded, err := client.LoadConfig(*configPath)
		if err != nil {
			fail("loading config", err)
		}
		cfg = loaded
	}
	cfg.Address = flag.Arg(0)
	slotID, err := strconv.ParseUint(flag.Arg(1), 10, 32)
	if err != nil {
		fail("parsing slot", err)
	}
	channel, err := strconv.ParseUint(flag.Arg(2), 10, 64)
	if err != nil {
		fail("parsing channel", err)
	}
	message := []byte(flag.Arg(3))

	f, err := client.Open(context.Background(), cfg, uint32(slotID), slot.ModeWrite)
	if err != nil {
		fail("opening slot", err)
	}
	defer f.Close()
	if err := f.SelectChannel(channel); err != nil {
		fail("selecting channel", err)
	}
	if _, err := f.Write(message); err != nil {
		fail("writing message", err)
	}
}

func fail(stage string, err error) {
	reason := err.Error()
	if errno := client.Errno(err); errno != 0 {
		reason = errno.Error()
	}
	fmt.Fprintf(os.Stderr, "ERROR %s (%s)\n", stage, reason)
	os.Exit(1)
}
