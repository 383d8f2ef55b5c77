package main

import "github.com/nodewarden/nodewarden/cmd/warden-monitor/cmd"

func main() {
	cmd.Execute()
}
