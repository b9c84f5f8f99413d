package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
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

const serverTemplate = `id = "morphgrid.server"
host = "0.0.0.0"
port = 9443
http_addr = ":8080"
cors_origins = ["http://localhost:3000"]

auth_mode = "static"
static_token = "change-me"
jwt_secret = ""
jwt_issuer = "morphgrid"

job_workers = 4
redis_addr = ""

frame_max_bytes = 16777216
read_deadline_minutes = 60
`

const clientTemplate = `id = "morphgrid.client"
target_host = "127.0.0.1"
target_port = 9443
scale = 1

base_delay_ms = 500
max_delay_seconds = 30
max_attempts = -1

frame_max_bytes = 16777216
`
