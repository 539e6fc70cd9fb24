// Package tunio adapts the real TUN device — or, in tests, an in-memory
// stand-in — behind a small per-packet capability interface, so the
// Supervisor never depends on a concrete device implementation (spec.md
// §9's "polymorphism over the TUN device"). Grounded in
// golang.zx2c4.com/wireguard/tun's batched Device interface, wrapped down
// to the single-packet Read/Write shape this daemon's core actually uses.
package tunio

import (
	"fmt"

	"golang.zx2c4.com/wireguard/tun"
)

// Device is the capability the core needs from a TUN interface: read and
// write one IP packet at a time.
type Device interface {
	ReadPacket(buf []byte) (int, error)
	WritePacket(packet []byte) error
	Name() string
	MTU() int
	Close() error
}

// wireguardTUN wraps a real golang.zx2c4.com/wireguard/tun.Device,
// allocating single-packet batch buffers sized to its reported MTU.
type wireguardTUN struct {
	dev       tun.Device
	name      string
	mtu       int
	readBufs  [][]byte
	readSizes []int
	writeBufs [][]byte
}

// Open creates a TUN interface named name (platform-dependent naming
// rules apply; an empty name lets the OS choose) and wraps it.
func Open(name string, mtu int) (Device, error) {
	dev, err := tun.CreateTUN(name, mtu)
	if err != nil {
		return nil, fmt.Errorf("creating tun device: %w", err)
	}
	actualName, err := dev.Name()
	if err != nil {
		actualName = name
	}
	actualMTU, err := dev.MTU()
	if err != nil {
		actualMTU = mtu
	}
	return &wireguardTUN{
		dev:       dev,
		name:      actualName,
		mtu:       actualMTU,
		readBufs:  [][]byte{make([]byte, actualMTU+32)},
		readSizes: make([]int, 1),
		writeBufs: [][]byte{nil},
	}, nil
}

func (w *wireguardTUN) ReadPacket(buf []byte) (int, error) {
	n, err := w.dev.Read(w.readBufs, w.readSizes, 0)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return copy(buf, w.readBufs[0][:w.readSizes[0]]), nil
}

func (w *wireguardTUN) WritePacket(packet []byte) error {
	w.writeBufs[0] = packet
	_, err := w.dev.Write(w.writeBufs, 0)
	return err
}

func (w *wireguardTUN) Name() string { return w.name }
func (w *wireguardTUN) MTU() int     { return w.mtu }
func (w *wireguardTUN) Close() error { return w.dev.Close() }
