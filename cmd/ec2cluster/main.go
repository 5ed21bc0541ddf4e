// Package main is the entry point for the ec2cluster CLI.
//
// ec2cluster launches, inspects, and tears down fixed-size EC2 clusters
// for distributed training. Cluster identity lives entirely in EC2 Name
// tags, so the tool keeps no local state and any machine with the same
// config file addresses the same cluster.
//
// Commands: init, create, delete, describe, describe-config, ssh-cmd,
// setup-horovod.
//
// For detailed usage information, run:
//
//	ec2cluster --help
package main

import (
	"fmt"
	"os"

	"ec2cluster/cmd/ec2cluster/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
