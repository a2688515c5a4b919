package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/buildinfo"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/repository"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// =============================================================================
// Settings
// =============================================================================

// Settings is the content of settings.toml.
type Settings struct {
	LocalRepository string `toml:"local_repository"`
	Offline         bool   `toml:"offline"`

	// UpdatePolicy overrides the update policy of every repository.
	UpdatePolicy string `toml:"update_policy"`

	// Checksum is accepted for compatibility; checksums are not verified.
	Checksum string `toml:"checksum"`

	UpdateCheckMode         string `toml:"update_check_mode"`
	CacheNotFound           bool   `toml:"cache_not_found"`
	CacheTransferError      bool   `toml:"cache_transfer_error"`
	IgnoreMissingDescriptor bool   `toml:"ignore_missing_descriptor"`
	IgnoreInvalidDescriptor bool   `toml:"ignore_invalid_descriptor"`

	Repositories []RepositorySettings `toml:"repository"`
	HTTP         HTTPSettings         `toml:"http"`
}

// RepositorySettings is one [[repository]] table.
type RepositorySettings struct {
	ID                   string `toml:"id"`
	URL                  string `toml:"url"`
	Releases             *bool  `toml:"releases"`
	Snapshots            *bool  `toml:"snapshots"`
	ReleaseUpdatePolicy  string `toml:"release_update_policy"`
	SnapshotUpdatePolicy string `toml:"snapshot_update_policy"`
	Username             string `toml:"username"`
	Password             string `toml:"password"`
}

// HTTPSettings is the [http] table.
type HTTPSettings struct {
	MaxRetries       int      `toml:"max_retries"`
	BaseDelay        duration `toml:"base_delay"`
	UserAgent        string   `toml:"user_agent"`
	BreakerThreshold int      `toml:"breaker_threshold"`
}

// duration decodes TOML strings such as "250ms".
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// defaultSettings returns the settings used when no file exists.
func defaultSettings() (*Settings, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	return &Settings{
		LocalRepository: filepath.Join(home, ".m2", "repository"),
		HTTP: HTTPSettings{
			MaxRetries:       repository.DefaultMaxRetries,
			BaseDelay:        duration{repository.DefaultBaseDelay},
			UserAgent:        buildinfo.UserAgent(),
			BreakerThreshold: repository.DefaultBreakerThreshold,
		},
	}, nil
}

// loadSettings reads settings from path over the defaults. A missing file
// is only an error when the path was given explicitly. Unknown keys are
// logged and ignored.
func loadSettings(path string, explicit bool, logger *log.Logger) (*Settings, error) {
	s, err := defaultSettings()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return s, nil
	}
	md, err := toml.DecodeFile(path, s)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		logger.Warn("unknown settings key", "file", path, "key", key.String())
	}
	if s.Checksum != "" {
		logger.Debug("checksum policy is not enforced", "checksum", s.Checksum)
	}
	if strings.HasPrefix(s.LocalRepository, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		s.LocalRepository = filepath.Join(home, s.LocalRepository[2:])
	}
	return s, s.validate()
}

func (s *Settings) validate() error {
	if _, err := session.ParseUpdateCheckMode(s.UpdateCheckMode); err != nil {
		return err
	}
	seen := map[string]bool{}
	for i, r := range s.Repositories {
		if r.ID == "" || r.URL == "" {
			return fmt.Errorf("repository %d: id and url are required", i+1)
		}
		if seen[r.ID] {
			return fmt.Errorf("repository %s: duplicate id", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// =============================================================================
// Conversions
// =============================================================================

// RemoteRepositories returns the configured repositories, or central when
// none is configured.
func (s *Settings) RemoteRepositories() []artifact.RemoteRepository {
	if len(s.Repositories) == 0 {
		return []artifact.RemoteRepository{artifact.Central()}
	}
	out := make([]artifact.RemoteRepository, 0, len(s.Repositories))
	for _, rs := range s.Repositories {
		out = append(out, rs.remote())
	}
	return out
}

func (rs RepositorySettings) remote() artifact.RemoteRepository {
	r := artifact.NewRemoteRepository(rs.ID, rs.URL)
	if rs.Releases != nil {
		r.Releases.Enabled = *rs.Releases
	}
	if rs.Snapshots != nil {
		r.Snapshots.Enabled = *rs.Snapshots
	}
	if rs.ReleaseUpdatePolicy != "" {
		r.Releases.UpdatePolicy = rs.ReleaseUpdatePolicy
	}
	if rs.SnapshotUpdatePolicy != "" {
		r.Snapshots.UpdatePolicy = rs.SnapshotUpdatePolicy
	}
	if rs.Username != "" {
		r.Auth = &artifact.Authentication{Username: rs.Username, Password: rs.Password}
	}
	return r
}

// parseRepositoryFlag parses a --repo value of the form id=url.
func parseRepositoryFlag(v string) (artifact.RemoteRepository, error) {
	id, url, ok := strings.Cut(v, "=")
	if !ok || id == "" || url == "" {
		return artifact.RemoteRepository{}, fmt.Errorf("invalid repository %q (expected id=url)", v)
	}
	return artifact.NewRemoteRepository(id, url), nil
}

// Factory returns the transport factory the settings describe.
func (s *Settings) Factory() repository.Factory {
	return repository.DefaultFactory(s.HTTP.BreakerThreshold,
		repository.WithUserAgent(s.HTTP.UserAgent),
		repository.WithMaxRetries(s.HTTP.MaxRetries),
		repository.WithBaseDelay(s.HTTP.BaseDelay.Duration),
	)
}

// sessionFlags are per-command overrides of the settings.
type sessionFlags struct {
	offline bool
	update  bool
}

// Session builds a session from the settings and the command flags.
func (s *Settings) Session(flags sessionFlags, logger *log.Logger) (*session.Session, error) {
	cfg := session.Config{
		LocalRepository: s.LocalRepository,
		Offline:         s.Offline || flags.offline,
		UpdatePolicy:    s.UpdatePolicy,
		UpdateCheckMode: session.UpdateCheckMode(s.UpdateCheckMode),
		Listener:        observability.LogListener{Logger: logger},
		Logger:          logger,
	}
	if flags.update {
		cfg.UpdatePolicy = "always"
	}
	if s.CacheNotFound {
		cfg.ErrorCachePolicy |= session.CacheNotFound
	}
	if s.CacheTransferError {
		cfg.ErrorCachePolicy |= session.CacheTransferError
	}
	if s.IgnoreMissingDescriptor {
		cfg.DescriptorPolicy |= session.IgnoreMissing
	}
	if s.IgnoreInvalidDescriptor {
		cfg.DescriptorPolicy |= session.IgnoreInvalid
	}
	return session.New(cfg)
}
