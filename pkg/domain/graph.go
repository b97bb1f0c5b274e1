package domain

import (
	"fmt"
	"sync"
)

// EdgeKey уникальный ключ ребра
type EdgeKey struct {
	From string
	To   string
}

// String возвращает строковое представление ключа ребра
func (e EdgeKey) String() string {
	return fmt.Sprintf("%s->%s", e.From, e.To)
}

// Node представляет узел дорожного графа
type Node struct {
	ID        string
	Latitude  float64
	Longitude float64
	Name      string
}

// Clone создаёт копию узла
func (n *Node) Clone() *Node {
	clone := *n
	return &clone
}

// Edge представляет взвешенное ребро дорожного графа.
// Distance в километрах, Time в минутах.
type Edge struct {
	From     string
	To       string
	Distance float64
	Time     float64
}

// Clone создаёт копию ребра
func (e *Edge) Clone() *Edge {
	clone := *e
	return &clone
}

// Key возвращает ключ ребра
func (e *Edge) Key() EdgeKey {
	return EdgeKey{From: e.From, To: e.To}
}

// Graph представляет дорожную сеть для поиска путей
type Graph struct {
	Nodes map[string]*Node
	Edges map[EdgeKey]*Edge

	// Индексы для быстрого доступа
	outgoing map[string][]string
	incoming map[string][]string

	mu sync.RWMutex
}

// NewGraph создаёт новый пустой граф
func NewGraph() *Graph {
	return &Graph{
		Nodes:    make(map[string]*Node),
		Edges:    make(map[EdgeKey]*Edge),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// AddNode добавляет узел в граф
func (g *Graph) AddNode(node *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Nodes[node.ID] = node
}

// AddEdge добавляет ребро в граф
func (g *Graph) AddEdge(edge *Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := edge.Key()
	if _, exists := g.Edges[key]; !exists {
		g.outgoing[edge.From] = append(g.outgoing[edge.From], edge.To)
		g.incoming[edge.To] = append(g.incoming[edge.To], edge.From)
	}
	g.Edges[key] = edge
}

// GetNode возвращает узел по ID
func (g *Graph) GetNode(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.Nodes[id]
	return node, ok
}

// GetEdge возвращает ребро между двумя узлами
func (g *Graph) GetEdge(from, to string) (*Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edge, ok := g.Edges[EdgeKey{From: from, To: to}]
	return edge, ok
}

// GetOutgoing возвращает исходящих соседей узла
func (g *Graph) GetOutgoing(nodeID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.outgoing[nodeID]
}

// GetIncoming возвращает входящих соседей узла
func (g *Graph) GetIncoming(nodeID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.incoming[nodeID]
}

// NodeCount возвращает количество узлов
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.Nodes)
}

// EdgeCount возвращает количество рёбер
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.Edges)
}

// Clone создаёт глубокую копию графа
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := NewGraph()
	for _, node := range g.Nodes {
		clone.Nodes[node.ID] = node.Clone()
	}
	for key, edge := range g.Edges {
		clone.Edges[key] = edge.Clone()
		clone.outgoing[edge.From] = append(clone.outgoing[edge.From], edge.To)
		clone.incoming[edge.To] = append(clone.incoming[edge.To], edge.From)
	}
	return clone
}

// HasNegativeWeights проверяет наличие рёбер с отрицательным весом.
// Алгоритм Дейкстры на таких графах неприменим.
func (g *Graph) HasNegativeWeights() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, edge := range g.Edges {
		if edge.Distance < 0 || edge.Time < 0 {
			return true
		}
	}
	return false
}

// Validate проверяет корректность графа
func (g *Graph) Validate() []error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	for key, edge := range g.Edges {
		if _, ok := g.Nodes[edge.From]; !ok {
			errs = append(errs, fmt.Errorf("edge %s references non-existent node %s", key, edge.From))
		}
		if _, ok := g.Nodes[edge.To]; !ok {
			errs = append(errs, fmt.Errorf("edge %s references non-existent node %s", key, edge.To))
		}
		if edge.From == edge.To {
			errs = append(errs, fmt.Errorf("self-loop detected at node %s", edge.From))
		}
		if edge.Distance < 0 {
			errs = append(errs, fmt.Errorf("edge %s has negative distance weight", key))
		}
		if edge.Time < 0 {
			errs = append(errs, fmt.Errorf("edge %s has negative time weight", key))
		}
	}

	return errs
}

// GraphFromMatrix строит полный граф из матрицы расстояний и времени.
// Значения на границе MaxSafeDistance считаются недостижимыми и рёбер
// не порождают.
func GraphFromMatrix(locations []*Location, m *Matrix) (*Graph, error) {
	if m == nil {
		return nil, fmt.Errorf("matrix is nil")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	byID := make(map[string]*Location, len(locations))
	for _, loc := range locations {
		byID[loc.ID] = loc
	}

	g := NewGraph()
	for _, id := range m.LocationIDs {
		node := &Node{ID: id}
		if loc, ok := byID[id]; ok {
			node.Latitude = loc.Latitude
			node.Longitude = loc.Longitude
			node.Name = loc.Address
		}
		g.AddNode(node)
	}

	n := m.Size()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			dist := m.Distance[i][j]
			if dist >= MaxSafeDistance {
				continue
			}
			g.AddEdge(&Edge{
				From:     m.LocationIDs[i],
				To:       m.LocationIDs[j],
				Distance: dist,
				Time:     m.Time[i][j],
			})
		}
	}

	return g, nil
}
