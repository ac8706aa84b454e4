package gojaeventloop

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

// SocketModuleName is the name the socket module is registered under, with
// [Adapter.Register].
const SocketModuleName = "socket"

const socketReadSize = 4096

// ErrSocketUnsupported is thrown by every socket function, on platforms
// without the poll(2) based [eventloop.Poller].
var ErrSocketUnsupported = errors.New("gojaeventloop: sockets are not supported on this platform")

// RequireSocket returns a [require.ModuleLoader] for the socket module, a
// minimal interface over non-blocking IPv4 TCP sockets, identified by their
// file descriptors. Descriptors are intended to be passed to
// EventLoop.listenFd.
//
//   - createServerSocket(address, port) -> fd
//   - accept(fd) -> {fd, address, port}, or null if no connection is pending
//   - connect(address, port) -> fd, the connection may still be in progress
//   - read(fd) -> ArrayBuffer, empty at EOF, or null if it would block
//   - write(fd, data) -> number of bytes written, data is a string or ArrayBuffer
//   - close(fd)
//   - localAddress(fd) -> {address, port}
func RequireSocket() require.ModuleLoader {
	return func(runtime *goja.Runtime, module *goja.Object) {
		m := &socketModule{runtime: runtime}
		exports := module.Get("exports").(*goja.Object)
		for _, f := range [...]struct {
			name string
			fn   func(goja.FunctionCall) goja.Value
		}{
			{"createServerSocket", m.createServerSocket},
			{"accept", m.accept},
			{"connect", m.connect},
			{"read", m.read},
			{"write", m.write},
			{"close", m.close},
			{"localAddress", m.localAddress},
		} {
			if err := exports.Set(f.name, f.fn); err != nil {
				panic(runtime.NewGoError(err))
			}
		}
	}
}

type socketModule struct {
	runtime *goja.Runtime
}

func (m *socketModule) createServerSocket(call goja.FunctionCall) goja.Value {
	addr := m.addrPort(call.Argument(0), call.Argument(1))
	fd, err := listenTCP(addr)
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}
	return m.runtime.ToValue(fd)
}

func (m *socketModule) accept(call goja.FunctionCall) goja.Value {
	fd, peer, err := acceptTCP(m.fd(call.Argument(0)))
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}
	if fd < 0 {
		return goja.Null()
	}
	obj := m.addrObject(peer)
	_ = obj.Set("fd", fd)
	return obj
}

func (m *socketModule) connect(call goja.FunctionCall) goja.Value {
	addr := m.addrPort(call.Argument(0), call.Argument(1))
	if addr.Addr().IsUnspecified() {
		panic(m.runtime.NewTypeError("connect requires a destination address"))
	}
	fd, err := connectTCP(addr)
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}
	return m.runtime.ToValue(fd)
}

func (m *socketModule) read(call goja.FunctionCall) goja.Value {
	buf := make([]byte, socketReadSize)
	n, err := readFD(m.fd(call.Argument(0)), buf)
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}
	if n < 0 {
		return goja.Null()
	}
	return m.runtime.ToValue(m.runtime.NewArrayBuffer(buf[:n]))
}

func (m *socketModule) write(call goja.FunctionCall) goja.Value {
	fd := m.fd(call.Argument(0))
	var data []byte
	switch v := call.Argument(1).Export().(type) {
	case string:
		data = []byte(v)
	case goja.ArrayBuffer:
		data = v.Bytes()
	case []byte:
		data = v
	default:
		panic(m.runtime.NewTypeError("write requires a string or ArrayBuffer"))
	}
	n, err := writeFD(fd, data)
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}
	return m.runtime.ToValue(n)
}

func (m *socketModule) close(call goja.FunctionCall) goja.Value {
	if err := closeFD(m.fd(call.Argument(0))); err != nil {
		panic(m.runtime.NewGoError(err))
	}
	return goja.Undefined()
}

func (m *socketModule) localAddress(call goja.FunctionCall) goja.Value {
	addr, err := localAddr(m.fd(call.Argument(0)))
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}
	return m.addrObject(addr)
}

func (m *socketModule) fd(v goja.Value) int {
	fd := v.ToInteger()
	if fd <= 0 || fd > int64(^uint32(0)>>1) {
		panic(m.runtime.NewTypeError("invalid file descriptor: %s", v.String()))
	}
	return int(fd)
}

func (m *socketModule) addrPort(address, port goja.Value) netip.AddrPort {
	addr := netip.IPv4Unspecified()
	if !goja.IsUndefined(address) && !goja.IsNull(address) {
		var err error
		if addr, err = parseIPv4(address.String()); err != nil {
			panic(m.runtime.NewTypeError("%s", err.Error()))
		}
	}
	p := port.ToInteger()
	if p < 0 || p > 65535 {
		panic(m.runtime.NewTypeError("invalid port: %s", port.String()))
	}
	return netip.AddrPortFrom(addr, uint16(p))
}

func (m *socketModule) addrObject(addr netip.AddrPort) *goja.Object {
	obj := m.runtime.NewObject()
	_ = obj.Set("address", addr.Addr().String())
	_ = obj.Set("port", addr.Port())
	return obj
}

// parseIPv4 accepts an IPv4 literal, "localhost", or "" for any address.
func parseIPv4(s string) (netip.Addr, error) {
	switch s {
	case "":
		return netip.IPv4Unspecified(), nil
	case "localhost":
		return netip.AddrFrom4([4]byte{127, 0, 0, 1}), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %q", s)
	}
	return addr, nil
}
