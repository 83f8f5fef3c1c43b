package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
bootstrap:
  path: /var/lib/aidotbridge/bootstrap.json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Backend != DefaultBackend {
		t.Fatalf("backend default: %s", cfg.Backend)
	}
	if cfg.HTTP.Addr != DefaultHTTPAddr {
		t.Fatalf("http addr default: %s", cfg.HTTP.Addr)
	}
	if cfg.Poll.RetryDelay.Std() != DefaultRetryDelay {
		t.Fatalf("retry delay default: %s", cfg.Poll.RetryDelay.Std())
	}
	if cfg.MQTT.Enabled() {
		t.Fatalf("mqtt should be disabled without a broker")
	}
	if cfg.Ledger.Enabled() {
		t.Fatalf("ledger should be disabled without a path")
	}
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  json: true
backend: sim
bootstrap:
  path: /data/bootstrap.json
  blob:
    endpoint: https://minio.local:9000
    bucket: homelab
    access_key_file: /run/secrets/minio-access
    secret_key_file: /run/secrets/minio-secret
mqtt:
  broker: mqtt.local
  username: bridge
  password: hunter2
http:
  addr: 127.0.0.1:9090
poll:
  retry_delay: 2s
ledger:
  path: /data/ledger.db
  retention_days: 14
manual_ips:
  dev-1: 192.168.1.40
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !cfg.MQTT.Enabled() || cfg.MQTT.Port != DefaultMQTTPort {
		t.Fatalf("mqtt: %+v", cfg.MQTT)
	}
	if cfg.MQTT.TopicPrefix != DefaultTopicPrefix {
		t.Fatalf("topic prefix default: %s", cfg.MQTT.TopicPrefix)
	}
	if cfg.Bootstrap.Blob.Prefix != DefaultBlobPrefix {
		t.Fatalf("blob prefix default: %s", cfg.Bootstrap.Blob.Prefix)
	}
	if cfg.Poll.RetryDelay.Std() != 2*time.Second {
		t.Fatalf("retry delay: %s", cfg.Poll.RetryDelay.Std())
	}
	if cfg.ManualIPs["dev-1"] != "192.168.1.40" {
		t.Fatalf("manual ips: %+v", cfg.ManualIPs)
	}
	if !cfg.Ledger.Enabled() || cfg.Ledger.RetentionDays != 14 {
		t.Fatalf("ledger: %+v", cfg.Ledger)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing bootstrap path",
			yaml: `
http:
  addr: :8080
`,
			want: "bootstrap.path",
		},
		{
			name: "incomplete blob",
			yaml: `
bootstrap:
  path: /data/bootstrap.json
  blob:
    endpoint: https://minio.local
    bucket: homelab
`,
			want: "access_key_file",
		},
		{
			name: "bad mqtt port",
			yaml: `
bootstrap:
  path: /data/bootstrap.json
mqtt:
  broker: mqtt.local
  port: 70000
`,
			want: "mqtt.port",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
