// Command mcpbridge runs the MCP aggregator/bridge: it connects to the
// downstream services and upstream endpoints named in its config file and
// keeps both sides alive until told to stop.
package main

func main() {
	Execute()
}
