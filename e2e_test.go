package mmio_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	mmio "github.com/reglet-dev/spike-mmio-sdk"
	"github.com/reglet-dev/spike-mmio-sdk/devices/counter"
	"github.com/reglet-dev/spike-mmio-sdk/devices/ram"
	"github.com/reglet-dev/spike-mmio-sdk/mmiotest"
)

// switchDevice answers every access with the result named by its argument.
type switchDevice struct {
	ok bool
}

func newSwitch(args string) *switchDevice {
	return &switchDevice{ok: args == "ok"}
}

func (d *switchDevice) Load(_ uint64, buf []byte) bool {
	clear(buf)
	return d.ok
}

func (d *switchDevice) Store(uint64, []byte) bool {
	return d.ok
}

// faultyDevice panics on any access at offset 0.
type faultyDevice struct{}

func (faultyDevice) Load(offset uint64, buf []byte) bool {
	if offset == 0 {
		panic("device bug")
	}
	clear(buf)
	return true
}

func (faultyDevice) Store(offset uint64, _ []byte) bool {
	if offset == 0 {
		panic("device bug")
	}
	return true
}

func TestMain(m *testing.M) {
	mmio.MustRegister("dev0", counter.New,
		mmio.WithDescription("4-byte little-endian counter"),
		mmio.WithArgs(counter.Args{}),
	)
	mmio.MustRegister("ram", ram.New, mmio.WithArgs(ram.Args{}))
	mmio.MustRegister("switch", newSwitch)
	mmio.MustRegister("faulty", func(string) faultyDevice { return faultyDevice{} })

	if err := mmio.Start(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestDev0_IgnoresStores(t *testing.T) {
	dev := mmiotest.Open(t, "dev0", "2a")
	want := []byte{0x2a, 0x00, 0x00, 0x00}

	for _, offset := range []uint64{0, 4, 0x1000, ^uint64(0)} {
		assert.Equal(t, want, dev.MustLoad(offset, 4), "offset %#x", offset)
	}

	dev.MustStore(0, []byte{0, 0, 0, 0})
	assert.Equal(t, want, dev.MustLoad(0, 4))
}

func TestRAM_RoundTrip(t *testing.T) {
	dev := mmiotest.Open(t, "ram", "size=4096")

	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(rt, "data")
		offset := rapid.Uint64Range(0, uint64(4096-len(data))).Draw(rt, "offset")

		if !dev.Store(offset, data) {
			rt.Fatalf("store of %d bytes at %d failed", len(data), offset)
		}
		got := make([]byte, len(data))
		if !dev.Load(offset, got) {
			rt.Fatalf("load of %d bytes at %d failed", len(data), offset)
		}
		assert.Equal(rt, data, got)
	})
}

func TestZeroLengthAccess(t *testing.T) {
	tests := []struct {
		plugin    string
		args      string
		offset    uint64
		wantLoad  bool
		wantStore bool
	}{
		{"dev0", "2a", 0, true, true},
		{"ram", "size=16", 16, true, true},
		{"ram", "size=16", 17, false, false},
		{"switch", "fail", 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.plugin+"/"+tt.args, func(t *testing.T) {
			dev := mmiotest.Open(t, tt.plugin, tt.args)
			assert.Equal(t, tt.wantLoad, dev.Load(tt.offset, nil))
			assert.Equal(t, tt.wantStore, dev.Store(tt.offset, []byte{}))
		})
	}
}

func TestInvalidUTF8Args(t *testing.T) {
	dev0 := mmiotest.OpenRaw(t, "dev0", []byte{0xff, 0xfe})
	assert.Equal(t, []byte{0xab, 0xab, 0x00, 0x00}, dev0.MustLoad(0, 4))

	mem := mmiotest.OpenRaw(t, "ram", []byte{'s', 'i', 'z', 'e', '=', 0xc3, 0x28})
	mem.MustStore(ram.DefaultSize-2, []byte{1, 2})
	assert.Equal(t, []byte{1, 2}, mem.MustLoad(ram.DefaultSize-2, 2))
}

func TestBooleansPassThrough(t *testing.T) {
	ok := mmiotest.Open(t, "switch", "ok")
	fail := mmiotest.Open(t, "switch", "fail")

	for _, offset := range []uint64{0, 1, 0xffff} {
		buf := make([]byte, 4)
		assert.True(t, ok.Load(offset, buf))
		assert.True(t, ok.Store(offset, buf))
		assert.False(t, fail.Load(offset, buf))
		assert.False(t, fail.Store(offset, buf))
	}
}

func TestPanickingDeviceFails(t *testing.T) {
	dev := mmiotest.Open(t, "faulty", "")

	assert.False(t, dev.Load(0, make([]byte, 4)))
	assert.False(t, dev.Store(0, []byte{1}))
	assert.True(t, dev.Load(4, make([]byte, 4)))
}

func TestAllocDealloc_LeakFree(t *testing.T) {
	baseline := mmio.LiveInstances()

	rapid.Check(t, func(rt *rapid.T) {
		plugin := rapid.SampledFrom([]string{"dev0", "ram", "switch"}).Draw(rt, "plugin")
		args := rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(rt, "args")

		dev := mmiotest.OpenRaw(t, plugin, args)
		if got := mmio.LiveInstances(); got != baseline+1 {
			rt.Fatalf("live instances = %d after allocate, want %d", got, baseline+1)
		}
		dev.Close()
	})

	assert.Equal(t, baseline, mmio.LiveInstances())
}
