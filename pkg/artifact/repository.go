package artifact

import (
	"net/url"
	"strings"
)

// RepositoryPolicy controls whether a repository is consulted for one
// kind of version and how often cached data from it is re-checked.
type RepositoryPolicy struct {
	Enabled      bool
	UpdatePolicy string
}

// Authentication holds basic credentials for a remote repository.
type Authentication struct {
	Username string
	Password string
}

// RemoteRepository is a repository reached through a transport.
type RemoteRepository struct {
	ID          string
	URL         string
	ContentType string
	Releases    RepositoryPolicy
	Snapshots   RepositoryPolicy
	Auth        *Authentication
}

// CentralURL is the default public repository.
const CentralURL = "https://repo.maven.apache.org/maven2"

// NewRemoteRepository returns a "default" layout repository with releases
// and snapshots enabled under the daily update policy.
func NewRemoteRepository(id, rawURL string) RemoteRepository {
	return RemoteRepository{
		ID:          id,
		URL:         strings.TrimRight(rawURL, "/"),
		ContentType: "default",
		Releases:    RepositoryPolicy{Enabled: true, UpdatePolicy: "daily"},
		Snapshots:   RepositoryPolicy{Enabled: true, UpdatePolicy: "daily"},
	}
}

// Central returns the central repository with snapshots disabled.
func Central() RemoteRepository {
	r := NewRemoteRepository("central", CentralURL)
	r.Snapshots.Enabled = false
	return r
}

// Policy returns the policy that applies to snapshot or release data.
func (r RemoteRepository) Policy(snapshot bool) RepositoryPolicy {
	if snapshot {
		return r.Snapshots
	}
	return r.Releases
}

// Accepts reports whether the repository serves data of the given nature.
func (r RemoteRepository) Accepts(n Nature) bool {
	switch n {
	case NatureRelease:
		return r.Releases.Enabled
	case NatureSnapshot:
		return r.Snapshots.Enabled
	default:
		return r.Releases.Enabled || r.Snapshots.Enabled
	}
}

// NormalizedURL is the repository URL in the form used as a tracking key:
// lower-case scheme and host, no trailing slash.
func (r RemoteRepository) NormalizedURL() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return strings.TrimRight(r.URL, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return strings.TrimRight(u.String(), "/")
}

func (r RemoteRepository) String() string {
	return r.ID + " (" + r.URL + ")"
}

// MergeRepositories appends the repositories of extra that are not yet in
// dominant, matching by id. Order is preserved.
func MergeRepositories(dominant, extra []RemoteRepository) []RemoteRepository {
	out := make([]RemoteRepository, 0, len(dominant)+len(extra))
	seen := make(map[string]bool, len(dominant)+len(extra))
	for _, list := range [][]RemoteRepository{dominant, extra} {
		for _, r := range list {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}
