// Periodically ping an image-data server

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/rpc"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Login used for the heartbeat session.
	userName = flag.String("user", "root", "")
	password = flag.String("password", "", "")
)

const helpMessage = `

omeroping periodically calls the server as a heartbeat, logging in once and asking
for the session's event context on every tick.

Usage: omeroping [options] <delay in seconds> <rpc address>

  Example address: localhost:4064

      -user       =string   Name to log in with (default "root").
      -password   =string   Password to log in with.
  -h, -help       (flag)    Show help message
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if *showHelp || flag.NArg() != 2 {
		flag.Usage()
		os.Exit(0)
	}
	args := flag.Args()

	pause, err := strconv.Atoi(args[0])
	if err != nil || pause <= 0 {
		fmt.Printf("error parsing pause time %q: %v\n", args[0], err)
		os.Exit(1)
	}
	address := args[1]
	delay := time.Duration(pause) * time.Second

	ctx := context.Background()
	client, err := rpc.Dial(ctx, address, *userName, *password, rpc.Options{Timeout: delay, Logger: ome.DiscardLogger()})
	if err != nil {
		fmt.Printf("error connecting to %q: %v\n", address, err)
		os.Exit(1)
	}
	defer client.Close()

	for t := range time.Tick(delay) {
		start := time.Now()
		if _, err := client.Admin().EventContext(ctx); err != nil {
			fmt.Printf("%s: error pinging %q: %v\n", t, address, err)
			os.Exit(1)
		}
		if elapsed := time.Since(start); elapsed > delay/2 {
			fmt.Printf("Slow response %s: %s\n", time.Now(), elapsed)
		}
	}
}
