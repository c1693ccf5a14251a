package api

type options struct {
	maxBody int64
}

// Option configures a Server.
type Option func(*options)

// WithMaxBody bounds the size of uploaded documents.
func WithMaxBody(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBody = n
		}
	}
}
