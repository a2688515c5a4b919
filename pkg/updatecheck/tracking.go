package updatecheck

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/magiconair/properties"

	"github.com/matzehuels/mvnresolve/pkg/fsutil"
)

const (
	updatedSuffix = ".lastUpdated"
	errorSuffix   = ".error"

	// StatusFile is the tracking file of a metadata directory.
	StatusFile = "resolver-status.properties"
)

// ReadTracking loads a tracking file. A missing or unreadable file yields
// an empty set of properties.
func ReadTracking(path string) *properties.Properties {
	data, err := os.ReadFile(path)
	if err != nil {
		return newProperties()
	}
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return newProperties()
	}
	return p
}

// UpdateTracking applies updates to the tracking file at path under an
// exclusive lock. A nil value removes the key. The resulting properties
// are returned; when none remain the file is removed.
func UpdateTracking(ctx context.Context, path string, updates map[string]*string) (*properties.Properties, error) {
	var out *properties.Properties
	err := fsutil.WithLock(ctx, path, func() error {
		p := ReadTracking(path)
		for k, v := range updates {
			if v == nil {
				p.Delete(k)
				continue
			}
			if _, _, err := p.Set(k, *v); err != nil {
				return err
			}
		}
		out = p
		if p.Len() == 0 {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		}
		p.Sort()
		var buf bytes.Buffer
		buf.WriteString("#NOTE: This is an internal implementation file, its format can be changed without prior notice.\n")
		if _, err := p.Write(&buf, properties.UTF8); err != nil {
			return err
		}
		return fsutil.WriteFile(path, buf.Bytes())
	})
	return out, err
}

func newProperties() *properties.Properties {
	p := properties.NewProperties()
	p.DisableExpansion = true
	return p
}

// lastUpdated returns the timestamp stored under key. A missing or
// malformed value yields the earliest non-zero time so the record still
// counts as present.
func lastUpdated(p *properties.Properties, key string) time.Time {
	v, ok := p.Get(key + updatedSuffix)
	if !ok || v == "" {
		return time.UnixMilli(1)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.UnixMilli(1)
	}
	return time.UnixMilli(ms)
}

// storedError returns the error marker under key. ok is false when the
// key has none.
func storedError(p *properties.Properties, key string) (msg string, ok bool) {
	return p.Get(key + errorSuffix)
}

func hasErrors(p *properties.Properties) bool {
	for _, k := range p.Keys() {
		if strings.HasSuffix(k, errorSuffix) {
			return true
		}
	}
	return false
}

func formatMillis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func strPtr(s string) *string { return &s }
