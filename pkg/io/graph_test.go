package io

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/collect"
)

func node(coords string, scope artifact.Scope, depth int, children ...*collect.Node) *collect.Node {
	a, err := artifact.Parse(coords)
	if err != nil {
		panic(err)
	}
	return &collect.Node{
		Dependency: artifact.Dependency{Artifact: a, Scope: scope},
		Depth:      depth,
		Children:   children,
	}
}

func tree() *collect.Node {
	shared := node("org.example:c:1.9", artifact.ScopeCompile, 2)
	shared.Premanaged = collect.Premanaged{Version: "[1.0,2.0)"}
	cycle := node("org.example:app:1.0", artifact.ScopeCompile, 2)
	cycle.Cycle = true
	return node("org.example:app:1.0", "", 0,
		node("org.example:a:1.0", artifact.ScopeCompile, 1, shared, cycle),
		node("org.example:b:tests:1.0", artifact.ScopeTest, 1, node("org.example:c:1.9", artifact.ScopeTest, 2)),
	)
}

func TestFromTree(t *testing.T) {
	g := FromTree(tree())

	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	want := []string{"org.example:app:jar:1.0", "org.example:a:jar:1.0", "org.example:c:jar:1.9", "org.example:b:tests:1.0"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}

	wantEdges := []Edge{
		{From: "org.example:app:jar:1.0", To: "org.example:a:jar:1.0"},
		{From: "org.example:a:jar:1.0", To: "org.example:c:jar:1.9"},
		{From: "org.example:a:jar:1.0", To: "org.example:app:jar:1.0", Cycle: true},
		{From: "org.example:app:jar:1.0", To: "org.example:b:tests:1.0"},
		{From: "org.example:b:tests:1.0", To: "org.example:c:jar:1.9"},
	}
	if diff := cmp.Diff(wantEdges, g.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	c, ok := g.Node("org.example:c:jar:1.9")
	if !ok {
		t.Fatal("node c missing")
	}
	if c.PURL != "pkg:maven/org.example/c@1.9" {
		t.Errorf("purl = %q", c.PURL)
	}
	if c.ManagedFrom == nil || c.ManagedFrom.Version != "[1.0,2.0)" {
		t.Errorf("managed from = %+v", c.ManagedFrom)
	}
	if b, _ := g.Node("org.example:b:tests:1.0"); b.PURL != "pkg:maven/org.example/b@1.0?type=tests" {
		t.Errorf("purl with type = %q", b.PURL)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	g := FromTree(tree())
	var buf bytes.Buffer
	if err := WriteJSON(g, &buf); err != nil {
		t.Fatal(err)
	}
	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(g, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"org.example:c:jar:1.9", "org.example:app:jar:1.0"}, got.Children("org.example:a:jar:1.0")); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
}

func TestReadJSONRejectsBrokenGraphs(t *testing.T) {
	tests := map[string]string{
		"malformed":    `{"nodes": [`,
		"duplicate":    `{"nodes": [{"id": "a"}, {"id": "a"}]}`,
		"unknown edge": `{"nodes": [{"id": "a"}], "edges": [{"from": "a", "to": "b"}]}`,
		"unknown root": `{"root": "x", "nodes": [{"id": "a"}]}`,
		"missing id":   `{"nodes": [{"version": "1"}]}`,
	}
	for name, in := range tests {
		if _, err := ReadJSON(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
