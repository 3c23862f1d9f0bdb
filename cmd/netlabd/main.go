// netlabd runs a userspace Ethernet/ARP/IPv4/ICMP/UDP stack against a Linux
// TAP device, for local network-protocol experimentation without a kernel
// network namespace.
package main

import "github.com/soypat/ipstack/cmd/netlabd/commands"

func main() {
	commands.Execute()
}
