package dedupe

// Option configures an in-memory Deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds how many fingerprints are remembered. Once full the
// oldest fingerprint is forgotten first. Zero or negative means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
