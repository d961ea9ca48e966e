package macho

import "fmt"

const (
	// DefaultMaxPathLength is PATH_MAX on Darwin.
	DefaultMaxPathLength = 4096
	// DefaultPageSize is the segment alignment used when relocating content.
	DefaultPageSize = 0x1000
)

// Config controls how load command edits are applied.
type Config struct {
	// AllowRelocation permits moving file content when the load commands outgrow the padding.
	AllowRelocation bool
	// MaxPathLength is the longest accepted LC_RPATH path in bytes.
	MaxPathLength int
	// RejectDuplicates makes adding an existing LC_RPATH an error.
	RejectDuplicates bool
	// SignaturePolicy decides what happens to signed images.
	SignaturePolicy SignaturePolicy
	// PageSize is the granularity content of loadable images moves by.
	PageSize uint64
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		AllowRelocation:  true,
		MaxPathLength:    DefaultMaxPathLength,
		RejectDuplicates: true,
		SignaturePolicy:  SignatureFail,
		PageSize:         DefaultPageSize,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.MaxPathLength <= 0 {
		return fmt.Errorf("max path length must be positive (got %d)", c.MaxPathLength)
	}
	if c.PageSize == 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("page size must be a power of two (got %#x)", c.PageSize)
	}
	if _, ok := signaturePolicyNames[c.SignaturePolicy]; !ok {
		return fmt.Errorf("invalid signature policy %s", c.SignaturePolicy)
	}
	return nil
}

// An Option changes the configuration of a single edit.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(conf Config) Option {
	return func(c *Config) { *c = conf }
}

// WithAllowRelocation controls whether content after the load commands may
// move when they outgrow the header padding.
func WithAllowRelocation(allow bool) Option {
	return func(c *Config) { c.AllowRelocation = allow }
}

// WithMaxPathLength sets the longest accepted LC_RPATH path in bytes.
func WithMaxPathLength(n int) Option {
	return func(c *Config) { c.MaxPathLength = n }
}

// WithRejectDuplicates makes adding an LC_RPATH that already exists an error.
func WithRejectDuplicates(reject bool) Option {
	return func(c *Config) { c.RejectDuplicates = reject }
}

// WithSignaturePolicy sets what an edit does to a signed image.
func WithSignaturePolicy(p SignaturePolicy) Option {
	return func(c *Config) { c.SignaturePolicy = p }
}

// WithPageSize sets the page size relocated content of loadable images is
// aligned to, 0x4000 for arm64 for example.
func WithPageSize(size uint64) Option {
	return func(c *Config) { c.PageSize = size }
}

func newConfig(opts []Option) (*Config, error) {
	conf := DefaultConfig()
	for _, opt := range opts {
		opt(&conf)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
