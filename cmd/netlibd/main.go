// netlibd gathers ICE candidates and prints them, one per line. It exists to
// exercise the library from the command line; there is no daemon mode.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/vcnet/netlib"
)

var (
	flagServers []string
	flagTimeout time.Duration
	flagNoHost  bool
	flagNoSrflx bool
)

func init() {
	flag.StringSliceVar(&flagServers, "stun-server", nil,
		"STUN server hostname (repeatable; default is the built-in list)")
	flag.DurationVar(&flagTimeout, "timeout", time.Second,
		"timeout per response wait cycle")
	flag.BoolVar(&flagNoHost, "no-host", false, "skip host candidates")
	flag.BoolVar(&flagNoSrflx, "no-srflx", false, "skip server-reflexive candidates")
}

func main() {
	flag.Parse()

	g := netlib.NewGatherer()
	if len(flagServers) > 0 {
		g.Servers = flagServers
	}
	g.Timeout = flagTimeout

	hostLine := color.New(color.FgGreen)
	srflxLine := color.New(color.FgCyan)

	if !flagNoHost {
		candidates, err := g.DiscoverHostCandidates()
		if err != nil {
			fmt.Fprintf(os.Stderr, "host candidate discovery failed: %v\n", err)
			os.Exit(1)
		}
		for _, c := range candidates {
			hostLine.Println(c)
		}
	}

	if !flagNoSrflx {
		for _, c := range g.DiscoverServerCandidates() {
			srflxLine.Println(c)
		}
	}
}
