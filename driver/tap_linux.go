//go:build linux

package driver

import (
	"fmt"
	"net/netip"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Tap backs an ethernet.Driver with a Linux TAP device: Send writes a whole
// frame, Recv reads one. Creating one requires CAP_NET_ADMIN.
type Tap struct {
	fd   int
	name string
}

// NewTap opens or creates the named TAP interface. If ip is valid the
// interface is brought up and assigned that address via the `ip` command,
// the same way the original prototype did it rather than reimplementing
// netlink from scratch.
func NewTap(name string, ip netip.Prefix) (*Tap, error) {
	if len(name) >= unix.IFNAMSIZ {
		return nil, fmt.Errorf("driver: interface name %q too long", name)
	}
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("driver: open /dev/net/tun: %w", err)
	}
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	ifr.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("driver: TUNSETIFF: %w", err)
	}
	if ip.IsValid() {
		if err := exec.Command("ip", "link", "set", "dev", name, "up").Run(); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("driver: bring up %s: %w", name, err)
		}
		if err := exec.Command("ip", "addr", "add", ip.String(), "dev", name).Run(); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("driver: assign address to %s: %w", name, err)
		}
	}
	return &Tap{fd: fd, name: name}, nil
}

// Send implements ethernet.Driver.
func (t *Tap) Send(frame []byte) error {
	_, err := unix.Write(t.fd, frame)
	return err
}

// Recv implements ethernet.Driver. The TAP file descriptor is opened
// blocking, same as the original prototype; callers that need a strictly
// non-blocking poll loop should set O_NONBLOCK on t.fd via unix.SetNonblock.
func (t *Tap) Recv(buf []byte) (int, error) {
	return unix.Read(t.fd, buf)
}

// HardwareAddress queries the kernel for this interface's MAC address.
func (t *Tap) HardwareAddress() (hw [6]byte, err error) {
	sock, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return hw, err
	}
	defer unix.Close(sock)
	ifr, err := unix.NewIfreq(t.name)
	if err != nil {
		return hw, err
	}
	if err := unix.IoctlIfreq(sock, unix.SIOCGIFHWADDR, ifr); err != nil {
		return hw, fmt.Errorf("driver: SIOCGIFHWADDR: %w", err)
	}
	data := ifr.Uint8Slice()
	copy(hw[:], data[2:8]) // leading 2 bytes are sa_family.
	return hw, nil
}

// Close releases the TAP file descriptor.
func (t *Tap) Close() error { return unix.Close(t.fd) }
