package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/flowchat/internal/daemon"
	"github.com/matheus3301/flowchat/internal/instance"
	"go.uber.org/fx"
)

func main() {
	instanceFlag := flag.String("instance", "", "instance name (overrides config default)")
	socketFlag := flag.String("socket", "", "unix socket path (defaults to the instance directory)")
	flag.Parse()

	name := instance.Resolve(*instanceFlag)
	if err := instance.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Instance: name, SocketPath: *socketFlag}),
	)

	app.Run()
}
