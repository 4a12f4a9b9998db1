package finders

import (
	"log/slog"
	"regexp"

	werrors "walker/internal/errors"
	"walker/internal/strategy"
)

// RegexName is the registry name of the pattern based finder.
const RegexName = "regex"

func init() {
	Registry.MustRegister(RegexName, func(options map[string]interface{}, logger *slog.Logger) (Finder, error) {
		var opts RegexOptions
		if err := strategy.DecodeOptions(options, &opts); err != nil {
			return nil, err
		}
		return NewRegex(opts, logger)
	})
}

// RegexOptions configures a Regex finder.
type RegexOptions struct {
	// Pattern is one or more RE2 expressions. The first capture group of
	// every match is the specifier.
	Pattern []string `mapstructure:"pattern" json:"pattern"`
	// Exclude lists specifiers that never produce a dependency.
	Exclude []string `mapstructure:"exclude" json:"exclude,omitempty"`
}

// Regex finds specifiers with regular expressions. Patterns run in
// multi-line mode over the whole content.
type Regex struct {
	patterns []*regexp.Regexp
	exclude  map[string]struct{}
	logger   *slog.Logger
}

// NewRegex compiles the configured patterns.
func NewRegex(opts RegexOptions, logger *slog.Logger) (*Regex, error) {
	if len(opts.Pattern) == 0 {
		return nil, werrors.Newf(werrors.OptionMissing, "to use the regex finder a pattern must be specified")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	f := &Regex{
		patterns: make([]*regexp.Regexp, 0, len(opts.Pattern)),
		exclude:  make(map[string]struct{}, len(opts.Exclude)),
		logger:   logger,
	}
	for _, p := range opts.Pattern {
		re, err := regexp.Compile("(?m)" + p)
		if err != nil {
			return nil, werrors.New(werrors.OptionInvalid, "invalid finder pattern", err)
		}
		if re.NumSubexp() < 1 {
			return nil, werrors.Newf(werrors.OptionInvalid, "finder pattern %q has no capture group", p)
		}
		f.patterns = append(f.patterns, re)
	}
	for _, e := range opts.Exclude {
		f.exclude[e] = struct{}{}
	}
	return f, nil
}

// Find applies each pattern in turn and returns first-group captures in
// order of occurrence, without repeats and without excluded specifiers.
func (f *Regex) Find(content, filePath string) []string {
	var results []string
	seen := make(map[string]struct{})

	for _, re := range f.patterns {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			if m[2] < 0 || m[3] <= m[2] {
				continue
			}
			spec := content[m[2]:m[3]]
			if _, dup := seen[spec]; dup {
				f.logger.Debug("Specifier required more than once", "specifier", spec, "file", filePath)
				continue
			}
			seen[spec] = struct{}{}
			if _, skip := f.exclude[spec]; skip {
				f.logger.Debug("Specifier excluded", "specifier", spec, "file", filePath)
				continue
			}
			results = append(results, spec)
		}
	}

	if len(results) == 0 {
		f.logger.Debug("No dependencies found", "file", filePath)
	}
	return results
}
