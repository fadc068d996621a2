package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// ServerProfile is a named BI server. Its password lives in the credential
// store under the same name.
type ServerProfile struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
}

// ConflictStrategy defines how to handle profile name conflicts
type ConflictStrategy string

const (
	ConflictFail      ConflictStrategy = "fail"
	ConflictOverwrite ConflictStrategy = "overwrite"
)

// FindServer returns the profile called name.
func (s *Settings) FindServer(name string) (ServerProfile, bool) {
	for _, p := range s.Servers {
		if p.Name == name {
			return p, true
		}
	}
	return ServerProfile{}, false
}

// ResolveServer picks the profile to publish to.
//
// Resolution order:
// 1) the explicit name;
// 2) the configured default server;
// 3) the only profile, when exactly one exists.
func (s *Settings) ResolveServer(name string) (ServerProfile, error) {
	resolved := name
	if resolved == "" {
		resolved = s.Server
	}
	if resolved != "" {
		p, ok := s.FindServer(resolved)
		if !ok {
			return ServerProfile{}, fmt.Errorf("server profile not found: %s", resolved)
		}
		return p, nil
	}
	if len(s.Servers) == 1 {
		return s.Servers[0], nil
	}
	if len(s.Servers) == 0 {
		return ServerProfile{}, fmt.Errorf("no server profiles configured. Please run 'cubepub server add' first")
	}
	return ServerProfile{}, fmt.Errorf("several server profiles configured, choose one with --server")
}

// AddServer stores p in v. An existing profile with the same name is kept
// under ConflictFail, in which case false is returned.
func AddServer(v *viper.Viper, p ServerProfile, strategy ConflictStrategy) (bool, error) {
	s, err := Load(v)
	if err != nil {
		return false, err
	}

	servers := make([]ServerProfile, 0, len(s.Servers)+1)
	replaced := false
	for _, existing := range s.Servers {
		if existing.Name == p.Name {
			if strategy != ConflictOverwrite {
				return false, nil
			}
			servers = append(servers, p)
			replaced = true
			continue
		}
		servers = append(servers, existing)
	}
	if !replaced {
		servers = append(servers, p)
	}

	setServers(v, servers)
	if s.Server == "" {
		v.Set(KeyServer, p.Name)
	}
	return true, Save(v)
}

// RemoveServer deletes the profile called name, reporting whether it existed.
func RemoveServer(v *viper.Viper, name string) (bool, error) {
	s, err := Load(v)
	if err != nil {
		return false, err
	}

	servers := make([]ServerProfile, 0, len(s.Servers))
	found := false
	for _, p := range s.Servers {
		if p.Name == name {
			found = true
			continue
		}
		servers = append(servers, p)
	}
	if !found {
		return false, nil
	}

	setServers(v, servers)
	if s.Server == name {
		v.Set(KeyServer, "")
	}
	return true, Save(v)
}

// SortedServers returns the profiles ordered by name.
func (s *Settings) SortedServers() []ServerProfile {
	out := append([]ServerProfile(nil), s.Servers...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func setServers(v *viper.Viper, servers []ServerProfile) {
	raw := make([]map[string]any, 0, len(servers))
	for _, p := range servers {
		raw = append(raw, map[string]any{
			"name":     p.Name,
			"url":      p.URL,
			"username": p.Username,
		})
	}
	v.Set(KeyServers, raw)
}
