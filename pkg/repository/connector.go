package repository

import (
	"context"
	"io"
	"os"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/fsutil"
	"github.com/matzehuels/mvnresolve/pkg/metadata"
	"github.com/matzehuels/mvnresolve/pkg/observability"
)

// Connector exchanges artifacts and metadata with one remote repository.
type Connector struct {
	repo      artifact.RemoteRepository
	transport Transport
}

// NewConnector binds t to repo.
func NewConnector(repo artifact.RemoteRepository, t Transport) *Connector {
	return &Connector{repo: repo, transport: t}
}

// Repository is the repository the connector talks to.
func (c *Connector) Repository() artifact.RemoteRepository { return c.repo }

// FetchArtifact downloads a into dst. The file is replaced atomically while
// holding its lock, so concurrent readers never see a partial download.
func (c *Connector) FetchArtifact(ctx context.Context, a artifact.Artifact, dst string) error {
	if err := c.fetch(ctx, artifact.ArtifactPath(a), dst); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "artifact", 0)
	return nil
}

// FetchMetadata downloads the document m into dst.
func (c *Connector) FetchMetadata(ctx context.Context, m artifact.MetadataRef, dst string) error {
	return c.fetch(ctx, artifact.MetadataPath(m), dst)
}

// ReadMetadata downloads and parses the document m. A document that does
// not parse is reported as a transfer failure.
func (c *Connector) ReadMetadata(ctx context.Context, m artifact.MetadataRef) (*metadata.Metadata, error) {
	p := artifact.MetadataPath(m)
	body, err := c.transport.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, transferError(p, err)
	}
	doc, err := metadata.Parse(data)
	if err != nil {
		return nil, transferError(p, err)
	}
	return doc, nil
}

// ListVersions returns the versions listed in the groupId:artifactId
// metadata of the repository.
func (c *Connector) ListVersions(ctx context.Context, groupID, artifactID string) ([]string, error) {
	doc, err := c.ReadMetadata(ctx, artifact.VersionsMetadata(groupID, artifactID, artifact.NatureReleaseOrSnapshot))
	if err != nil {
		return nil, err
	}
	return doc.Versions(), nil
}

// PutArtifact uploads the file at src as a.
func (c *Connector) PutArtifact(ctx context.Context, a artifact.Artifact, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return c.transport.Put(ctx, artifact.ArtifactPath(a), data)
}

// PutMetadata uploads an encoded metadata document.
func (c *Connector) PutMetadata(ctx context.Context, m artifact.MetadataRef, data []byte) error {
	return c.transport.Put(ctx, artifact.MetadataPath(m), data)
}

func (c *Connector) fetch(ctx context.Context, remote, dst string) error {
	body, err := c.transport.Get(ctx, remote)
	if err != nil {
		return err
	}
	defer body.Close()
	return fsutil.WithLock(ctx, dst, func() error {
		if _, err := fsutil.WriteFrom(dst, body); err != nil {
			return transferError(remote, err)
		}
		return nil
	})
}
