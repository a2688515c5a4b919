package descriptor

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"strings"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/errors"
)

// Project is the subset of a POM the resolver reads. The same type holds
// raw and effective models.
type Project struct {
	XMLName                xml.Name                `xml:"project"`
	ModelVersion           string                  `xml:"modelVersion,omitempty"`
	Parent                 *Parent                 `xml:"parent,omitempty"`
	GroupID                string                  `xml:"groupId,omitempty"`
	ArtifactID             string                  `xml:"artifactId,omitempty"`
	Version                string                  `xml:"version,omitempty"`
	Packaging              string                  `xml:"packaging,omitempty"`
	Name                   string                  `xml:"name,omitempty"`
	Description            string                  `xml:"description,omitempty"`
	URL                    string                  `xml:"url,omitempty"`
	Prerequisites          *Prerequisites          `xml:"prerequisites,omitempty"`
	Properties             Properties              `xml:"properties,omitempty"`
	DependencyManagement   *DependencyManagement   `xml:"dependencyManagement,omitempty"`
	Dependencies           []Dependency            `xml:"dependencies>dependency,omitempty"`
	Repositories           []Repository            `xml:"repositories>repository,omitempty"`
	PluginRepositories     []Repository            `xml:"pluginRepositories>pluginRepository,omitempty"`
	DistributionManagement *DistributionManagement `xml:"distributionManagement,omitempty"`
}

type Parent struct {
	GroupID      string `xml:"groupId"`
	ArtifactID   string `xml:"artifactId"`
	Version      string `xml:"version"`
	RelativePath string `xml:"relativePath,omitempty"`
}

func (p Parent) String() string { return p.GroupID + ":" + p.ArtifactID + ":" + p.Version }

type Prerequisites struct {
	Maven string `xml:"maven,omitempty"`
}

type DependencyManagement struct {
	Dependencies []Dependency `xml:"dependencies>dependency,omitempty"`
}

type Dependency struct {
	GroupID    string      `xml:"groupId"`
	ArtifactID string      `xml:"artifactId"`
	Version    string      `xml:"version,omitempty"`
	Type       string      `xml:"type,omitempty"`
	Classifier string      `xml:"classifier,omitempty"`
	Scope      string      `xml:"scope,omitempty"`
	SystemPath string      `xml:"systemPath,omitempty"`
	Optional   string      `xml:"optional,omitempty"`
	Exclusions []Exclusion `xml:"exclusions>exclusion,omitempty"`
}

// ManagementKey is groupId:artifactId:type:classifier, the key under which
// dependencies override each other during inheritance.
func (d Dependency) ManagementKey() string {
	typ := d.Type
	if typ == "" {
		typ = "jar"
	}
	return d.GroupID + ":" + d.ArtifactID + ":" + typ + ":" + d.Classifier
}

func (d Dependency) IsOptional() bool { return strings.TrimSpace(d.Optional) == "true" }

type Exclusion struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

type Repository struct {
	ID        string            `xml:"id"`
	Name      string            `xml:"name,omitempty"`
	URL       string            `xml:"url"`
	Layout    string            `xml:"layout,omitempty"`
	Releases  *RepositoryPolicy `xml:"releases,omitempty"`
	Snapshots *RepositoryPolicy `xml:"snapshots,omitempty"`
}

type RepositoryPolicy struct {
	Enabled      string `xml:"enabled,omitempty"`
	UpdatePolicy string `xml:"updatePolicy,omitempty"`
}

type DistributionManagement struct {
	Relocation *Relocation `xml:"relocation,omitempty"`
}

// Relocation moves an artifact to new coordinates. Empty fields keep the
// coordinate of the relocated artifact.
type Relocation struct {
	GroupID    string `xml:"groupId,omitempty"`
	ArtifactID string `xml:"artifactId,omitempty"`
	Version    string `xml:"version,omitempty"`
	Message    string `xml:"message,omitempty"`
}

// =============================================================================
// Properties
// =============================================================================

// Properties is the <properties> block: element name to text.
type Properties map[string]string

func (p *Properties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	out := Properties{}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var v string
			if err := d.DecodeElement(&v, &t); err != nil {
				return err
			}
			out[t.Name.Local] = strings.TrimSpace(v)
		case xml.EndElement:
			*p = out
			return nil
		}
	}
}

func (p Properties) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if len(p) == 0 {
		return nil
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, k := range sortedKeys(p) {
		if err := e.EncodeElement(p[k], xml.StartElement{Name: xml.Name{Local: k}}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// =============================================================================
// Parsing
// =============================================================================

// ParsePOM decodes a POM document. Anything that is not a <project>
// element fails with ErrCodeInvalidFormat.
func ParsePOM(data []byte) (*Project, error) {
	var p Project
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse pom")
	}
	if p.XMLName.Local != "project" {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "parse pom: root element is <%s>, want <project>", p.XMLName.Local)
	}
	p.trim()
	return &p, nil
}

// ReadPOM parses the POM at path.
func ReadPOM(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePOM(data)
}

// trim strips the whitespace pretty-printed POMs carry around values.
func (p *Project) trim() {
	for _, s := range []*string{&p.GroupID, &p.ArtifactID, &p.Version, &p.Packaging} {
		*s = strings.TrimSpace(*s)
	}
	if p.Parent != nil {
		p.Parent.GroupID = strings.TrimSpace(p.Parent.GroupID)
		p.Parent.ArtifactID = strings.TrimSpace(p.Parent.ArtifactID)
		p.Parent.Version = strings.TrimSpace(p.Parent.Version)
	}
	trimDeps(p.Dependencies)
	if p.DependencyManagement != nil {
		trimDeps(p.DependencyManagement.Dependencies)
	}
}

func trimDeps(deps []Dependency) {
	for i := range deps {
		d := &deps[i]
		for _, s := range []*string{&d.GroupID, &d.ArtifactID, &d.Version, &d.Type, &d.Classifier, &d.Scope, &d.Optional} {
			*s = strings.TrimSpace(*s)
		}
	}
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	if p.Parent != nil {
		parent := *p.Parent
		c.Parent = &parent
	}
	if p.Prerequisites != nil {
		pre := *p.Prerequisites
		c.Prerequisites = &pre
	}
	if p.Properties != nil {
		c.Properties = make(Properties, len(p.Properties))
		for k, v := range p.Properties {
			c.Properties[k] = v
		}
	}
	c.Dependencies = cloneDeps(p.Dependencies)
	if p.DependencyManagement != nil {
		c.DependencyManagement = &DependencyManagement{Dependencies: cloneDeps(p.DependencyManagement.Dependencies)}
	}
	c.Repositories = append([]Repository(nil), p.Repositories...)
	c.PluginRepositories = append([]Repository(nil), p.PluginRepositories...)
	if p.DistributionManagement != nil {
		dm := *p.DistributionManagement
		if dm.Relocation != nil {
			rel := *dm.Relocation
			dm.Relocation = &rel
		}
		c.DistributionManagement = &dm
	}
	return &c
}

func cloneDeps(deps []Dependency) []Dependency {
	if deps == nil {
		return nil
	}
	out := make([]Dependency, len(deps))
	for i, d := range deps {
		d.Exclusions = append([]Exclusion(nil), d.Exclusions...)
		out[i] = d
	}
	return out
}

// ManagedDependencies returns the dependencyManagement entries.
func (p *Project) ManagedDependencies() []Dependency {
	if p == nil || p.DependencyManagement == nil {
		return nil
	}
	return p.DependencyManagement.Dependencies
}

// Relocation returns the declared relocation or nil.
func (p *Project) Relocation() *Relocation {
	if p == nil || p.DistributionManagement == nil {
		return nil
	}
	return p.DistributionManagement.Relocation
}

// Coordinate is groupId:artifactId:version with inherited values applied.
func (p *Project) Coordinate() string {
	g, v := p.GroupID, p.Version
	if p.Parent != nil {
		if g == "" {
			g = p.Parent.GroupID
		}
		if v == "" {
			v = p.Parent.Version
		}
	}
	return g + ":" + p.ArtifactID + ":" + v
}

// =============================================================================
// Conversion
// =============================================================================

// ToDependency converts a POM dependency of an effective model.
func (d Dependency) ToDependency() artifact.Dependency {
	a := artifact.FromType(d.GroupID, d.ArtifactID, d.Type, d.Classifier, d.Version)
	if d.SystemPath != "" {
		a = a.WithProperties(map[string]string{artifact.PropLocalPath: d.SystemPath})
	}
	out := artifact.Dependency{
		Artifact: a,
		Scope:    artifact.Scope(d.Scope),
		Optional: d.IsOptional(),
	}
	for _, e := range d.Exclusions {
		out.Exclusions = append(out.Exclusions, artifact.Exclusion{
			GroupID:    e.GroupID,
			ArtifactID: e.ArtifactID,
			Classifier: artifact.Wildcard,
			Extension:  artifact.Wildcard,
		})
	}
	return out
}

// ToRemoteRepository converts a POM repository. Policies default to
// enabled with the daily update policy.
func (r Repository) ToRemoteRepository() artifact.RemoteRepository {
	out := artifact.NewRemoteRepository(r.ID, r.URL)
	if r.Layout != "" {
		out.ContentType = r.Layout
	}
	out.Releases = r.Releases.toPolicy(out.Releases)
	out.Snapshots = r.Snapshots.toPolicy(out.Snapshots)
	return out
}

func (p *RepositoryPolicy) toPolicy(def artifact.RepositoryPolicy) artifact.RepositoryPolicy {
	if p == nil {
		return def
	}
	if e := strings.TrimSpace(p.Enabled); e != "" {
		def.Enabled = e == "true"
	}
	if u := strings.TrimSpace(p.UpdatePolicy); u != "" {
		def.UpdatePolicy = u
	}
	return def
}
