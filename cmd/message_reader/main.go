package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/danmuck/msgslot/internal/client"
	"github.com/danmuck/msgslot/internal/logging"
	"github.com/danmuck/msgslot/internal/slot"
)

func main() {
	configPath := flag.String("config", "", "client config path (toml)")
	wait := flag.Bool("wait", false, "poll with backoff until a message arrives")
	size := flag.Int("size", slot.DefaultMaxMessageLen, "read buffer size in bytes")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: message_reader [-config client.toml] [-wait] <addr> <slot> <channel>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(1)
	}
	logging.ConfigureRuntime("message_reader")

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := client.Open(ctx, cfg, uint32(slotID), slot.ModeRead)
	if err != nil {
		fail("opening slot", err)
	}
	defer f.Close()
	if err := f.SelectChannel(channel); err != nil {
		fail("selecting channel", err)
	}

	buf := make([]byte, max(*size, 0))
	var n int
	if *wait {
		n, err = f.ReadWait(ctx, buf)
	} else {
		n, err = f.Read(buf)
	}
	if err != nil {
		fail("reading message", err)
	}
	if _, err := os.Stdout.Write(buf[:n]); err != nil {
		fail("writing to stdout", err)
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
