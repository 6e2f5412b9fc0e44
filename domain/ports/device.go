package ports

// Device is a memory-mapped device model addressed by offset.
//
// Load must fill every byte of buf from device state at offset when it
// returns true. On false the contents of buf are unspecified and the host
// treats the access as not having happened.
//
// Store must apply every byte of buf at offset when it returns true. A
// store that returns false must not have been partially applied.
//
// buf refers to host memory for the duration of the call only and must not
// be retained. Calls may arrive concurrently from several host threads; a
// Device synchronizes its own state.
type Device interface {
	Load(offset uint64, buf []byte) bool
	Store(offset uint64, buf []byte) bool
}
