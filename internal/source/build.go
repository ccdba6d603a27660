package source

import (
	"os"
	"strings"

	"github.com/guillermoBallester/txscope/internal/core/domain"
)

// keySegments is the shape <namespace>/Source/<dbKind>/<alias>.
const keySegments = 4

// Setting is one entry produced by the configuration collaborator.
type Setting struct {
	Key       string
	Address   string
	AutoClose bool
}

// Settings keeps the collaborator's document order; descriptors are admitted
// in the same order.
type Settings []Setting

// Expander performs variable substitution on an address.
type Expander func(string) string

// Build validates settings and turns them into descriptors. A nil expand
// falls back to os.ExpandEnv.
func Build(settings Settings, expand Expander) ([]domain.Descriptor, error) {
	if settings == nil {
		return nil, &domain.ConfigError{Err: domain.ErrNilConfig}
	}
	if expand == nil {
		expand = os.ExpandEnv
	}

	out := make([]domain.Descriptor, 0, len(settings))
	seen := make(map[string]bool, len(settings))
	for _, s := range settings {
		d, err := buildOne(s, expand)
		if err != nil {
			return nil, &domain.ConfigError{Key: s.Key, Err: err}
		}
		if seen[d.Alias] {
			return nil, &domain.ConfigError{Key: s.Key, Err: domain.ErrDuplicateAlias}
		}
		seen[d.Alias] = true
		out = append(out, d)
	}
	return out, nil
}

func buildOne(s Setting, expand Expander) (domain.Descriptor, error) {
	segs := strings.Split(s.Key, "/")
	if len(segs) != keySegments || segs[3] == "" {
		return domain.Descriptor{}, domain.ErrMalformedKey
	}

	kind, err := domain.ParseDbKind(segs[2])
	if err != nil {
		return domain.Descriptor{}, err
	}

	addr := strings.TrimSpace(s.Address)
	if addr == "" {
		return domain.Descriptor{}, domain.ErrEmptyAddress
	}
	addr = expand(addr)

	if kind.UsesAttributeDSN() {
		addr, err = Normalize(addr)
		if err != nil {
			return domain.Descriptor{}, err
		}
	}

	return domain.Descriptor{
		Alias:            segs[3],
		Kind:             kind,
		ConnectionString: addr,
		AutoClose:        s.AutoClose,
	}, nil
}
