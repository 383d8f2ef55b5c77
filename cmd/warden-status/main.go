package main

import "github.com/nodewarden/nodewarden/cmd/warden-status/cmd"

func main() {
	cmd.Execute()
}
