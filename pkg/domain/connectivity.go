package domain

// BFSReachable возвращает все достижимые вершины из source
func BFSReachable(g *Graph, source string) map[string]bool {
	visited := make(map[string]bool)
	if _, ok := g.GetNode(source); !ok {
		return visited
	}

	queue := []string{source}
	visited[source] = true

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		for _, v := range g.GetOutgoing(u) {
			if visited[v] {
				continue
			}
			visited[v] = true
			queue = append(queue, v)
		}
	}

	return visited
}

// IsConnected проверяет, существует ли путь от from к to
func IsConnected(g *Graph, from, to string) bool {
	return BFSReachable(g, from)[to]
}

// IsolatedNodes возвращает узлы, недостижимые из source.
// Используется для диагностики до запуска оптимизации.
func IsolatedNodes(g *Graph, source string) []string {
	reachable := BFSReachable(g, source)

	var isolated []string
	for id := range g.Nodes {
		if !reachable[id] {
			isolated = append(isolated, id)
		}
	}
	return isolated
}

// FindConnectedComponents находит компоненты связности
// (граф рассматривается как неориентированный)
func FindConnectedComponents(g *Graph) [][]string {
	visited := make(map[string]bool)
	components := make([][]string, 0, len(g.Nodes)/10+1)

	// Строим неориентированный граф смежности
	adj := make(map[string][]string)
	for _, edge := range g.Edges {
		adj[edge.From] = append(adj[edge.From], edge.To)
		adj[edge.To] = append(adj[edge.To], edge.From)
	}

	for nodeID := range g.Nodes {
		if visited[nodeID] {
			continue
		}

		var component []string
		queue := []string{nodeID}
		visited[nodeID] = true

		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			component = append(component, u)

			for _, v := range adj[u] {
				if !visited[v] {
					visited[v] = true
					queue = append(queue, v)
				}
			}
		}

		components = append(components, component)
	}

	return components
}
