package metadata

// Merge combines two documents describing the same coordinate and returns
// a new document; neither input is modified.
//
// dominant is normally the freshly generated or freshly fetched document
// and recessive the copy already on disk. Versions and plugins (keyed by
// prefix) are always unioned. The dominant side's scalars (latest,
// release, snapshot, lastUpdated) and snapshot versions win only when its
// lastUpdated is newer than or equal to the recessive one, or when it
// carries none; otherwise the recessive versioning is kept as is.
//
// Snapshot versions (keyed by classifier:extension) are unioned only when
// neither side is in the legacy format, a snapshot without snapshot
// versions. A legacy document on either side makes the result legacy too,
// so stale per-file entries never outlive the snapshot they belong to.
func Merge(dominant, recessive *Metadata) *Metadata {
	if dominant == nil {
		return recessive.Clone()
	}
	if recessive == nil {
		return dominant.Clone()
	}

	out := recessive.Clone()
	if out.GroupID == "" {
		out.GroupID = dominant.GroupID
	}
	if out.ArtifactID == "" {
		out.ArtifactID = dominant.ArtifactID
	}
	if out.Version == "" {
		out.Version = dominant.Version
	}
	out.Plugins = mergePlugins(dominant.Plugins, out.Plugins)

	if dominant.Versioning == nil {
		return out
	}
	dv := dominant.Versioning
	ov := out.versioning()
	for _, v := range dv.Versions {
		out.AddVersion(v)
	}

	last := dv.LastUpdated
	if last == "" {
		last = ov.LastUpdated
	}
	if ov.LastUpdated == "" || last >= ov.LastUpdated {
		legacy := dv.legacy() || ov.legacy()
		ov.LastUpdated = last
		if dv.Release != "" {
			ov.Release = dv.Release
		}
		if dv.Latest != "" {
			ov.Latest = dv.Latest
		}
		if dv.Snapshot != nil {
			s := *dv.Snapshot
			ov.Snapshot = &s
		}
		if legacy {
			ov.SnapshotVersions = nil
		} else {
			ov.SnapshotVersions = mergeSnapshotVersions(dv.SnapshotVersions, ov.SnapshotVersions)
		}
	}

	if len(ov.SnapshotVersions) > 0 || (dominant.ModelVersion != "" && !ov.legacy()) {
		out.ModelVersion = ModelVersion
	}
	return out
}

// legacy reports whether v names a snapshot build without listing its
// files, the format written before snapshot versions existed.
func (v *Versioning) legacy() bool {
	return v.Snapshot != nil && len(v.SnapshotVersions) == 0
}

// mergeSnapshotVersions keeps every entry of winner, in order, followed by
// the entries of loser whose key winner does not have.
func mergeSnapshotVersions(winner, loser []SnapshotVersion) []SnapshotVersion {
	if len(winner) == 0 && len(loser) == 0 {
		return nil
	}
	out := make([]SnapshotVersion, 0, len(winner)+len(loser))
	seen := make(map[string]bool, len(winner))
	for _, sv := range winner {
		if !seen[sv.Key()] {
			seen[sv.Key()] = true
			out = append(out, sv)
		}
	}
	for _, sv := range loser {
		if !seen[sv.Key()] {
			seen[sv.Key()] = true
			out = append(out, sv)
		}
	}
	return out
}

// mergePlugins keeps the order of recessive, replacing entries whose
// prefix dominant redefines, and appends dominant's new prefixes.
func mergePlugins(dominant, recessive []Plugin) []Plugin {
	if len(dominant) == 0 {
		return recessive
	}
	byPrefix := make(map[string]Plugin, len(dominant))
	for _, p := range dominant {
		byPrefix[p.Prefix] = p
	}
	out := make([]Plugin, 0, len(recessive)+len(dominant))
	for _, p := range recessive {
		if d, ok := byPrefix[p.Prefix]; ok {
			out = append(out, d)
			delete(byPrefix, p.Prefix)
			continue
		}
		out = append(out, p)
	}
	for _, p := range dominant {
		if _, ok := byPrefix[p.Prefix]; ok {
			out = append(out, p)
			delete(byPrefix, p.Prefix)
		}
	}
	return out
}
