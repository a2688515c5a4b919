// Package updatecheck decides whether a cached artifact or metadata file
// must be re-checked against a remote repository, and records the outcome
// of every check in tracking files next to the cached data.
//
// Tracking files use the Java properties format:
//
//   - <artifact-file>.lastUpdated for artifacts
//   - resolver-status.properties in the directory of a metadata file
//
// Each holds "<key>.lastUpdated" timestamps (milliseconds since the epoch)
// and "<key>.error" markers. An empty error marks a not-found outcome; a
// non-empty one is the message of a transfer failure, whose timestamp is
// stored under a separate transfer key so the two outcomes never mix.
package updatecheck

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// Update policies.
const (
	PolicyAlways   = "always"
	PolicyDaily    = "daily"
	PolicyNever    = "never"
	PolicyInterval = "interval:"
)

// ValidatePolicy rejects policy strings that IsUpdateRequired would only
// tolerate with a warning.
func ValidatePolicy(policy string) error {
	switch policy {
	case "", PolicyAlways, PolicyDaily, PolicyNever:
		return nil
	}
	if _, ok := intervalMinutes(policy); ok {
		return nil
	}
	return errors.New(errors.ErrCodeInvalidPolicy, "unknown update policy %q", policy)
}

// IsUpdateRequired reports whether data last checked at lastModified is
// stale under policy at time now. Unknown policies behave like daily after
// a warning.
func IsUpdateRequired(logger *log.Logger, now, lastModified time.Time, policy string) bool {
	switch policy {
	case PolicyAlways:
		return true
	case PolicyNever:
		return false
	case PolicyDaily, "":
		return lastModified.Before(startOfDay(now))
	}
	if minutes, ok := intervalMinutes(policy); ok {
		return lastModified.Before(now.Add(-time.Duration(minutes) * time.Minute))
	}
	if logger != nil {
		logger.Warn("unknown update policy, assuming daily", "policy", policy)
	}
	return lastModified.Before(startOfDay(now))
}

// EffectivePolicy returns the policy applying to repo for snapshot or
// release data; a session-wide policy overrides the repository's.
func EffectivePolicy(s *session.Session, repo artifact.RemoteRepository, snapshot bool) string {
	if p := s.UpdatePolicy(); p != "" {
		return p
	}
	return repo.Policy(snapshot).UpdatePolicy
}

func intervalMinutes(policy string) (int, bool) {
	rest, ok := strings.CutPrefix(policy, PolicyInterval)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
