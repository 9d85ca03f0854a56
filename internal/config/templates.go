package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "toml", "":
		return tomlTemplate, nil
	case "yaml", "yml":
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
}

func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const tomlTemplate = `listen_addr = "127.0.0.1:7235"
admin_listen_addr = "127.0.0.1:7236"
admin_token = ""
cors_origins = ["http://localhost:3000"]
slots = [0, 1, 2, 3]
max_message_len = 128
max_channels = 0
read_timeout = "5m"
write_timeout = "15s"
security_mode = "development"

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""
`

const yamlTemplate = `listen_addr: "127.0.0.1:7235"
admin_listen_addr: "127.0.0.1:7236"
admin_token: ""
cors_origins:
  - "http://localhost:3000"
slots: [0, 1, 2, 3]
max_message_len: 128
max_channels: 0
read_timeout: "5m"
write_timeout: "15s"
security_mode: "development"
tls:
  enabled: false
  mutual: false
`
