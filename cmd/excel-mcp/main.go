// Command excel-mcp serves Excel workbook tools over the Model Context Protocol.
package main

import (
	"os"

	"excel-mcp/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
