package main

import (
	"flag"
	"log"
	"strings"

	"github.com/danmuck/msgslot/internal/config"
)

func main() {
	format := flag.String("format", "toml", "config format: toml|yaml")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to cmd/slotd/config.<format>)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	defaultPath := "cmd/slotd/config." + strings.ToLower(strings.TrimSpace(*format))

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated slotd config at %s (slots=%v listen=%s)", path, cfg.Slots, cfg.ListenAddr)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
	}
	if err := config.WriteTemplate(target, *format, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s slotd config template to %s", *format, target)
}
