package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Excel MCP Service Configuration
# Every key can also be left out; environment variables override the file.

[server]
# Listen address (HOST / PORT)
host = "0.0.0.0"
port = 3000
# Inbound requests per second per process, 0 disables limiting
rate_limit = 10.0
rate_burst = 30
# HS256 secret for bearer tokens on /mcp (MCP_AUTH_SECRET), empty disables
auth_secret = ""
read_timeout = "15s"
write_timeout = "120s"

[graph]
base_url = "https://graph.microsoft.com/v1.0"
# Service principal (AZURE_TENANT_ID / AZURE_CLIENT_ID / AZURE_CLIENT_SECRET)
tenant_id = ""
client_id = ""
client_secret = ""
# Bound on every remote call
request_timeout = "30s"
retry_attempts = 3
# How long resolved workbook locations are cached
locator_ttl = "30m"

[tracker]
# Trade tracker workbook (TRADE_TRACKER_URL / TRADE_TRACKER_FILE)
url = ""
file_name = ""
default_sheet = "Sheet1"
search_column = "C"

# Canonical trade field -> column letter
[columns]
open_date = "C"
close_date = "D"
open_time = "E"
close_time = "F"
sold_call_strike = "G"
sold_put_strike = "H"
strategy = "I"
credit = "J"
debit = "K"
contracts = "L"
width = "M"
open_fees = "N"
close_fees = "O"

[journal]
# Local SQLite audit trail of tool calls and trade writes
enabled = true
path = ""

[tracing]
enabled = false

[log]
level = "info"
console = true
json = false
file = false
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
