package config

import (
	"errors"
	"strings"
)

// Payload formats a source can deliver.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
)

// Source is one entry of the source registry: where to fetch, how to
// authenticate and which normalizer variant to apply.
type Source struct {
	Name       string            `koanf:"name"`
	Endpoint   string            `koanf:"endpoint"`
	Credential string            `koanf:"credential"`
	Variant    string            `koanf:"variant"`
	Format     string            `koanf:"format"`
	Parameters map[string]string `koanf:"parameters"`
}

var knownVariants = []string{"course", "occupation"}

func (s *Source) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("name must not be empty")
	}
	if strings.TrimSpace(s.Endpoint) == "" {
		return errors.New("endpoint must not be empty")
	}
	ok := false
	for _, v := range knownVariants {
		if strings.EqualFold(v, s.Variant) {
			ok = true
			break
		}
	}
	if !ok {
		return errors.New("variant must be Course or Occupation")
	}
	switch strings.ToLower(s.Format) {
	case "":
		s.Format = FormatJSON
	case FormatJSON, FormatXML:
		s.Format = strings.ToLower(s.Format)
	default:
		return errors.New("format must be json or xml")
	}
	return nil
}
