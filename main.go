// ABOUTME: Entry point for the wsclient tool
// ABOUTME: Hands control to the cobra command tree
package main

import "github.com/Resonate-Protocol/wsclient/internal/cli"

func main() {
	cli.Execute()
}
