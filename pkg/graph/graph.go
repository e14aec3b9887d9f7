// Package graph projects profiles and connections into the node/link shape
// the network visualisation consumes. Layout is left to the renderer.
package graph

import (
	"slices"
	"sort"

	"github.com/shambu-network/shambu/pkg/models"
)

// Node is one profile in the graph.
type Node struct {
	ID        string  `json:"id"`
	FullName  string  `json:"fullName"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
	Title     string  `json:"title,omitempty"`
	Company   string  `json:"company,omitempty"`
	Degree    int     `json:"degree"`
}

// Link is one connection whose endpoints are both nodes of the graph.
type Link struct {
	ID              string                `json:"id"`
	Source          string                `json:"source"`
	Target          string                `json:"target"`
	Type            models.ConnectionType `json:"type"`
	Strength        float64               `json:"strength"`
	StrengthPercent int                   `json:"strengthPercent"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Build returns one node per profile, in input order, and one link per
// distinct connection found on those profiles. Connections to profiles
// outside the input are dropped.
func Build(profiles []models.Profile) Graph {
	var conns []models.Connection
	for _, p := range profiles {
		conns = append(conns, p.Connections...)
	}
	return assemble(profiles, conns, nil)
}

// Neighborhood restricts the graph to startID and the profiles reached by
// connections, typically the result of a FindConnections walk.
func Neighborhood(startID string, profiles []models.Profile, connections []models.Connection) Graph {
	reached := map[string]bool{startID: true}
	for _, c := range connections {
		reached[c.SourceID] = true
		reached[c.TargetID] = true
	}
	return assemble(profiles, connections, reached)
}

// assemble builds the graph. A nil keep admits every profile.
func assemble(profiles []models.Profile, connections []models.Connection, keep map[string]bool) Graph {
	g := Graph{Nodes: []Node{}, Links: []Link{}}
	index := make(map[string]int, len(profiles))
	for _, p := range profiles {
		if keep != nil && !keep[p.ID] {
			continue
		}
		if _, dup := index[p.ID]; dup {
			continue
		}
		index[p.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, Node{
			ID:        p.ID,
			FullName:  p.FullName,
			AvatarURL: p.AvatarURL,
			Title:     p.Title(),
			Company:   p.Company(),
		})
	}

	seen := make(map[string]bool, len(connections))
	for _, c := range connections {
		if seen[c.ID] {
			continue
		}
		src, okSrc := index[c.SourceID]
		dst, okDst := index[c.TargetID]
		if !okSrc || !okDst {
			continue
		}
		seen[c.ID] = true
		g.Nodes[src].Degree++
		g.Nodes[dst].Degree++
		g.Links = append(g.Links, Link{
			ID:              c.ID,
			Source:          c.SourceID,
			Target:          c.TargetID,
			Type:            c.Type,
			Strength:        c.Strength,
			StrengthPercent: c.StrengthPercent(),
		})
	}
	return g
}

// Component is a set of profiles linked to each other, ignoring direction.
type Component struct {
	ProfileIDs []string `json:"profileIds"`
	Size       int      `json:"size"`
}

// Components splits g into connected components using DFS. Components with
// more than one node are returned largest first; single unlinked nodes are
// returned separately as islands. Ids within a component are sorted.
func (g Graph) Components() ([]Component, []string) {
	adj := make(map[string][]string, len(g.Nodes))
	for _, l := range g.Links {
		adj[l.Source] = append(adj[l.Source], l.Target)
		adj[l.Target] = append(adj[l.Target], l.Source)
	}

	visited := make(map[string]bool, len(g.Nodes))
	components := []Component{}
	islands := []string{}
	for _, n := range g.Nodes {
		if visited[n.ID] {
			continue
		}
		ids := dfs(n.ID, adj, visited)
		if len(ids) == 1 {
			islands = append(islands, ids[0])
			continue
		}
		slices.Sort(ids)
		components = append(components, Component{ProfileIDs: ids, Size: len(ids)})
	}

	sort.SliceStable(components, func(i, j int) bool {
		if components[i].Size != components[j].Size {
			return components[i].Size > components[j].Size
		}
		return components[i].ProfileIDs[0] < components[j].ProfileIDs[0]
	})
	slices.Sort(islands)
	return components, islands
}

func dfs(start string, adj map[string][]string, visited map[string]bool) []string {
	var out []string
	stack := []string{start}
	visited[start] = true
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, id)
		for _, next := range adj[id] {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return out
}
