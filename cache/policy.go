package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxPrefixLength is the maximum length of an entry file prefix, which is the
// policy key or, when that is empty, the operation name.
const MaxPrefixLength = 128

// Tier selects the store that serves an operation.
type Tier int

const (
	// TierMemory keeps entries in process memory.
	TierMemory Tier = iota
	// TierFile keeps entries in files under the cache directory.
	TierFile
)

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierFile:
		return "file"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier parses "memory" or "file", case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "memory", "":
		return TierMemory, nil
	case "file":
		return TierFile, nil
	default:
		return 0, fmt.Errorf("%w: unknown tier %q", ErrInvalidPolicy, s)
	}
}

// UnmarshalYAML accepts the tier name as a scalar.
func (t *Tier) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML renders the tier name.
func (t Tier) MarshalYAML() (any, error) {
	return t.String(), nil
}

// Policy configures caching for one operation.
type Policy struct {
	// Tier selects the store. Defaults to TierMemory.
	Tier Tier `yaml:"tier"`

	// Key replaces the operation name as the first key element and as the
	// entry file prefix. Empty means the operation name.
	Key string `yaml:"key,omitempty"`

	// Exclude lists zero-based argument positions left out of the key.
	Exclude []int `yaml:"exclude,omitempty"`

	// Limit caps the number of elements stored for slice results.
	// Zero or negative means unlimited.
	Limit int `yaml:"limit,omitempty"`

	// Compress writes file entries as zip archives. Ignored by TierMemory.
	Compress bool `yaml:"compress,omitempty"`
}

// Validate checks the policy on its own. Wrap additionally checks that the
// operation name is usable as a file prefix for TierFile policies.
func (p Policy) Validate() error {
	if p.Tier != TierMemory && p.Tier != TierFile {
		return fmt.Errorf("%w: unknown tier %d", ErrInvalidPolicy, int(p.Tier))
	}
	for _, pos := range p.Exclude {
		if pos < 0 {
			return fmt.Errorf("%w: negative exclude position %d", ErrInvalidPolicy, pos)
		}
	}
	if p.Key != "" {
		if err := validatePrefix(p.Key); err != nil {
			return err
		}
	}
	return nil
}

// prefix returns the first key element for op.
func (p Policy) prefix(op string) string {
	if p.Key != "" {
		return p.Key
	}
	return op
}

func (p Policy) excludes(pos int) bool {
	return slices.Contains(p.Exclude, pos)
}

func (p Policy) clone() Policy {
	p.Exclude = slices.Clone(p.Exclude)
	return p
}

func validatePrefix(prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return fmt.Errorf("%w: blank key", ErrInvalidPolicy)
	}
	if len(prefix) > MaxPrefixLength {
		return fmt.Errorf("%w: key %q exceeds %d bytes", ErrInvalidPolicy, prefix, MaxPrefixLength)
	}
	if strings.ContainsAny(prefix, "/\\\n\r\x00") || strings.ContainsRune(prefix, os.PathSeparator) {
		return fmt.Errorf("%w: key %q is not a valid file prefix", ErrInvalidPolicy, prefix)
	}
	return nil
}

// PolicyDocument is the YAML form of a policy table:
//
//	operations:
//	  ListNumbers:
//	    tier: file
//	    key: numbers
//	    exclude: [1, 2]
//	    limit: 10
//	    compress: true
type PolicyDocument struct {
	Operations map[string]Policy `yaml:"operations"`
}

// LoadPolicies decodes a YAML policy document. Unknown fields are rejected.
func LoadPolicies(r io.Reader) (map[string]Policy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc PolicyDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]Policy{}, nil
		}
		return nil, fmt.Errorf("%w: decode policies: %w", ErrInvalidPolicy, err)
	}

	for op, p := range doc.Operations {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("operation %q: %w", op, err)
		}
	}
	if doc.Operations == nil {
		doc.Operations = map[string]Policy{}
	}
	return doc.Operations, nil
}

// LoadPolicyFile reads a YAML policy document from path.
func LoadPolicyFile(path string) (map[string]Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	defer func() { _ = f.Close() }()

	return LoadPolicies(f)
}
