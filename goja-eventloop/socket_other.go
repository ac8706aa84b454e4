//go:build !linux && !darwin

package gojaeventloop

import (
	"net/netip"
)

func listenTCP(netip.AddrPort) (int, error) {
	return -1, ErrSocketUnsupported
}

func acceptTCP(int) (int, netip.AddrPort, error) {
	return -1, netip.AddrPort{}, ErrSocketUnsupported
}

func connectTCP(netip.AddrPort) (int, error) {
	return -1, ErrSocketUnsupported
}

func readFD(int, []byte) (int, error) {
	return 0, ErrSocketUnsupported
}

func writeFD(int, []byte) (int, error) {
	return 0, ErrSocketUnsupported
}

func closeFD(int) error {
	return ErrSocketUnsupported
}

func localAddr(int) (netip.AddrPort, error) {
	return netip.AddrPort{}, ErrSocketUnsupported
}
