package main

import (
	"github.com/bsv-blockchain/shardledger/cmd/shardledger"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "shardledger"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func main() {
	shardledger.Main(progname, version, commit)
}
