package updatecheck

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/cache"
	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// Check describes one update check of a cached file against a repository.
// The Check* methods fill in Required and Err; the Touch* methods record
// Err (nil for success) as the outcome of the transfer that followed.
type Check struct {
	// Item names the artifact or metadata for messages.
	Item string

	// File is the local path of the cached artifact or metadata file.
	File string

	// FileValid is false when File exists but must not be trusted (for
	// example a snapshot whose remote copy is expected to have changed).
	FileValid bool

	// LocalLastUpdated is when the item was last installed locally. The
	// zero time means it was never installed.
	LocalLastUpdated time.Time

	// Policy is the effective update policy.
	Policy string

	Repository artifact.RemoteRepository

	// Required is set by the check: a remote request is needed.
	Required bool

	// Err is the cached failure surfaced by a check, or the outcome
	// recorded by a touch.
	Err error
}

// Manager evaluates update checks for one session.
type Manager struct {
	sess    *session.Session
	checked *cache.Map[string, bool]
}

// ForSession returns the manager of s, creating it on first use. The
// "already checked" memo lives as long as the session.
func ForSession(s *session.Session) *Manager {
	return session.Value(s, "updatecheck.manager", func() *Manager {
		return &Manager{sess: s, checked: cache.NewMap[string, bool]()}
	})
}

// =============================================================================
// Artifacts
// =============================================================================

// CheckArtifact decides whether the artifact in c must be fetched from
// c.Repository.
func (m *Manager) CheckArtifact(ctx context.Context, c *Check) {
	c.Required, c.Err = false, nil
	if m.locallyFresh(c) {
		m.sess.Logger().Debug("skipped remote request, locally installed artifact up-to-date", "artifact", c.Item)
		return
	}
	if c.FileValid && fileExists(c.File) {
		return
	}

	props := ReadTracking(ArtifactTrackingFile(c.File))
	dataKey := artifactDataKey(c.Repository)
	msg, hasErr := storedError(props, dataKey)

	var last time.Time
	switch {
	case !hasErr:
		// First attempt ever.
	case msg == "":
		last = lastUpdated(props, dataKey)
	default:
		last = lastUpdated(props, repoKey(c.Repository))
	}
	m.decide(c, last, hasErr, msg, false)
}

// TouchArtifact records the outcome of fetching the artifact in c. On
// success without remaining error markers the tracking file is removed.
func (m *Manager) TouchArtifact(ctx context.Context, c *Check) error {
	track := ArtifactTrackingFile(c.File)
	m.setChecked(c)
	props, err := UpdateTracking(ctx, track, m.updates(artifactDataKey(c.Repository), repoKey(c.Repository), c.Err))
	if err != nil {
		return err
	}
	if fileExists(c.File) && !hasErrors(props) {
		if err := os.Remove(track); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// =============================================================================
// Metadata
// =============================================================================

// CheckMetadata decides whether the metadata in c must be fetched from
// c.Repository.
func (m *Manager) CheckMetadata(ctx context.Context, c *Check) {
	c.Required, c.Err = false, nil
	if m.locallyFresh(c) {
		m.sess.Logger().Debug("skipped remote request, locally installed metadata up-to-date", "metadata", c.Item)
		return
	}

	exists := c.FileValid && fileExists(c.File)
	props := ReadTracking(MetadataTrackingFile(c.File))
	dataKey := filepath.Base(c.File)
	msg, hasErr := storedError(props, dataKey)

	var last time.Time
	switch {
	case !hasErr && exists:
		last = lastUpdated(props, dataKey)
	case !hasErr:
		// First attempt ever.
	case msg == "":
		last = lastUpdated(props, dataKey)
	default:
		last = lastUpdated(props, metadataTransferKey(c.File, c.Repository))
	}
	m.decide(c, last, hasErr, msg, exists)
}

// TouchMetadata records the outcome of fetching the metadata in c.
func (m *Manager) TouchMetadata(ctx context.Context, c *Check) error {
	m.setChecked(c)
	dataKey := filepath.Base(c.File)
	_, err := UpdateTracking(ctx, MetadataTrackingFile(c.File),
		m.updates(dataKey, metadataTransferKey(c.File, c.Repository), c.Err))
	return err
}

// =============================================================================
// Shared decision logic
// =============================================================================

func (m *Manager) locallyFresh(c *Check) bool {
	return !c.LocalLastUpdated.IsZero() &&
		!IsUpdateRequired(m.sess.Logger(), m.sess.Now(), c.LocalLastUpdated, c.Policy)
}

func (m *Manager) decide(c *Check, last time.Time, hasErr bool, msg string, exists bool) {
	switch {
	case last.IsZero():
		c.Required = true
	case m.alreadyChecked(c):
		m.sess.Logger().Debug("skipped remote request, already checked during this session", "item", c.Item)
		if hasErr {
			c.Err = cachedError(c, msg)
		}
	case IsUpdateRequired(m.sess.Logger(), m.sess.Now(), last, c.Policy):
		c.Required = true
	case exists:
		m.sess.Logger().Debug("skipped remote request, cached copy up-to-date", "item", c.Item)
	default:
		flag := session.CacheNotFound
		if msg != "" {
			flag = session.CacheTransferError
		}
		if m.sess.ErrorCachePolicy()&flag != 0 {
			c.Err = cachedError(c, msg)
		} else {
			c.Required = true
		}
	}
}

// updates computes the tracking changes for one outcome. Success clears
// the error and stamps the data key; not-found stores an empty marker and
// stamps the data key; a transfer error stores its message and stamps the
// transfer key only.
func (m *Manager) updates(dataKey, transferKey string, outcome error) map[string]*string {
	now := strPtr(formatMillis(m.sess.Now()))
	switch {
	case outcome == nil:
		return map[string]*string{
			dataKey + errorSuffix:       nil,
			dataKey + updatedSuffix:     now,
			transferKey + updatedSuffix: nil,
		}
	case IsNotFound(outcome):
		return map[string]*string{
			dataKey + errorSuffix:       strPtr(""),
			dataKey + updatedSuffix:     now,
			transferKey + updatedSuffix: nil,
		}
	default:
		msg := outcome.Error()
		if msg == "" {
			msg = "transfer failed"
		}
		return map[string]*string{
			dataKey + errorSuffix:       strPtr(msg),
			dataKey + updatedSuffix:     nil,
			transferKey + updatedSuffix: now,
		}
	}
}

func (m *Manager) alreadyChecked(c *Check) bool {
	if m.sess.UpdateCheckMode() != session.UpdateCheckEnabled {
		return false
	}
	_, ok := m.checked.Get(updateKey(c))
	return ok
}

func (m *Manager) setChecked(c *Check) {
	if m.sess.UpdateCheckMode() == session.UpdateCheckDisabled {
		return
	}
	m.checked.Set(updateKey(c), true)
}

// IsNotFound reports whether err is a not-found outcome rather than a
// transfer failure.
func IsNotFound(err error) bool {
	return errors.Is(err, errors.ErrCodeArtifactNotFound) || errors.Is(err, errors.ErrCodeNotFound)
}

func cachedError(c *Check, msg string) error {
	if msg == "" {
		return &errors.ArtifactNotFoundError{Coordinate: c.Item, Repository: c.Repository.String(), Cached: true}
	}
	return &errors.TransferError{
		Coordinate: c.Item,
		Repository: c.Repository.String(),
		Cached:     true,
		Cause:      errors.New(errors.ErrCodeTransfer, "%s", msg),
	}
}

// =============================================================================
// Keys and paths
// =============================================================================

// ArtifactTrackingFile is the tracking file of an artifact file.
func ArtifactTrackingFile(file string) string { return file + updatedSuffix }

// MetadataTrackingFile is the tracking file of a metadata file.
func MetadataTrackingFile(file string) string { return filepath.Join(filepath.Dir(file), StatusFile) }

func artifactDataKey(repo artifact.RemoteRepository) string {
	return repo.NormalizedURL() + "/"
}

func metadataTransferKey(file string, repo artifact.RemoteRepository) string {
	return filepath.Base(file) + "/" + repoKey(repo)
}

// repoKey identifies a repository including its credentials, so a check
// made with other credentials is not mistaken for this one.
func repoKey(repo artifact.RemoteRepository) string {
	var b strings.Builder
	if repo.Auth != nil {
		b.WriteString(cache.Hash([]byte(repo.Auth.Username + ":" + repo.Auth.Password))[:16])
	}
	b.WriteString("@")
	b.WriteString(repo.ContentType)
	b.WriteString("-")
	b.WriteString(repo.ID)
	b.WriteString("-")
	b.WriteString(repo.NormalizedURL())
	b.WriteString("/")
	return b.String()
}

func updateKey(c *Check) string {
	abs, err := filepath.Abs(c.File)
	if err != nil {
		abs = c.File
	}
	return abs + "|" + repoKey(c.Repository)
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
