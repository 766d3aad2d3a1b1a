package analyzer

import "time"

// Options configures the analyzers.
type Options struct {
	// Timeout bounds every remote analyzer call.
	Timeout time.Duration

	// OCR
	OCRLanguage string

	// Scene tags
	FireTagWindow int
	FireTags      []string

	// Custom classifier
	ClassifierThreshold float64
	TransformerTag      string
	PoleTag             string
}

// DefaultOptions returns default analyzer options
func DefaultOptions() Options {
	return Options{
		Timeout:             20 * time.Second,
		OCRLanguage:         "en",
		FireTagWindow:       5,
		FireTags:            []string{"fire", "flame"},
		ClassifierThreshold: 0.70,
		TransformerTag:      "Transformer",
		PoleTag:             "Power Pole",
	}
}

// WithTimeout returns options with the remote call timeout replaced
func (opts Options) WithTimeout(d time.Duration) Options {
	if d > 0 {
		opts.Timeout = d
	}
	return opts
}

// WithLanguage returns options with the OCR language replaced
func (opts Options) WithLanguage(lang string) Options {
	if lang != "" {
		opts.OCRLanguage = lang
	}
	return opts
}

// withDefaults fills unset fields from DefaultOptions. A negative fire window is treated as zero.
func (opts Options) withDefaults() Options {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.OCRLanguage == "" {
		opts.OCRLanguage = def.OCRLanguage
	}
	if len(opts.FireTags) == 0 {
		opts.FireTags = def.FireTags
		opts.FireTagWindow = def.FireTagWindow
	}
	if opts.FireTagWindow < 0 {
		opts.FireTagWindow = 0
	}
	if opts.ClassifierThreshold <= 0 {
		opts.ClassifierThreshold = def.ClassifierThreshold
	}
	if opts.TransformerTag == "" {
		opts.TransformerTag = def.TransformerTag
	}
	if opts.PoleTag == "" {
		opts.PoleTag = def.PoleTag
	}
	return opts
}
