// Package io converts resolved dependency trees into a flat graph and
// reads and writes that graph as JSON.
//
// # JSON Format
//
//	{
//	  "root": "org.example:app:jar:1.0",
//	  "nodes": [
//	    {"id": "org.example:app:jar:1.0", "group_id": "org.example", ...},
//	    {"id": "org.example:lib:jar:2.1", "scope": "compile", "depth": 1,
//	     "purl": "pkg:maven/org.example/lib@2.1"}
//	  ],
//	  "edges": [
//	    {"from": "org.example:app:jar:1.0", "to": "org.example:lib:jar:2.1"}
//	  ]
//	}
//
// Node ids are artifact coordinates (groupId:artifactId:extension
// [:classifier]:version). An artifact reached along several paths appears
// once; each path contributes an edge. Edges closing a dependency cycle
// carry "cycle": true.
//
// Package URLs follow the maven purl type, with classifier and non-jar
// extension as qualifiers.
//
// Exported graphs can be read back with [ReadJSON] and rendered by
// render/nodelink without resolving again.
package io
