package config

import (
	"fmt"

	"github.com/blburns/simple-nfsd-sub001/internal/export"
)

// BuildExportTable translates the config file's exports[] entries into the
// export.Table the access gate consults, applying the top-level squash
// defaults (root_squash/all_squash/anon_uid/anon_gid) to any entry that
// doesn't override them.
func BuildExportTable(cfg *Config) (*export.Table, error) {
	entries := make([]*export.Export, 0, len(cfg.Exports))
	for _, e := range cfg.Exports {
		clean, err := export.Canonicalize(e.Path)
		if err != nil {
			return nil, fmt.Errorf("config: export %q: %w", e.Path, err)
		}

		matchers := make([]export.ClientMatcher, 0, len(e.Clients))
		for _, c := range e.Clients {
			m, err := export.ParseClientMatcher(c)
			if err != nil {
				return nil, fmt.Errorf("config: export %q client %q: %w", e.Path, c, err)
			}
			matchers = append(matchers, m)
		}
		if len(matchers) == 0 {
			wildcard, _ := export.ParseClientMatcher("*")
			matchers = append(matchers, wildcard)
		}

		anonUID, anonGID := e.AnonUID, e.AnonGID
		if anonUID == 0 {
			anonUID = cfg.AnonUID
		}
		if anonGID == 0 {
			anonGID = cfg.AnonGID
		}

		entries = append(entries, &export.Export{
			Path:           clean,
			Clients:        matchers,
			ReadOnly:       e.ReadOnly,
			RootSquash:     e.RootSquash || cfg.RootSquash,
			AllSquash:      e.AllSquash || cfg.AllSquash,
			NoSubtreeCheck: e.NoSubtreeCheck,
			Secure:         e.Secure,
			AnonUID:        anonUID,
			AnonGID:        anonGID,
			Comment:        e.Comment,
		})
	}
	return export.NewTable(entries), nil
}
