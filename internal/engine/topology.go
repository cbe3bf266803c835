package engine

import (
	"fmt"
	"sort"
	"strings"

	"main/internal/bus"
	"main/internal/schema"
)

// topology is the resolved delivery plan: for every topic, the subscriber
// module indices sorted by topological rank. Built once at startup from the
// modules' immutable declarations; never mutated afterwards.
type topology struct {
	subscribers [schema.TopicCount + 1][]int
	rank        []int
}

// resolveTopology builds the producer->consumer graph from declarations,
// rejects non-delayed cycles, and orders subscribers deterministically.
// Delayed publications are excluded from the cycle check: their outputs are
// stamped strictly later than the trigger, so they cannot require in-tick
// ordering.
func resolveTopology(modules []moduleContext) (*topology, error) {
	n := len(modules)

	var producers [schema.TopicCount + 1][]int
	for i, ctx := range modules {
		for _, pub := range ctx.decl.Publishes {
			if pub.Delayed {
				continue
			}
			producers[pub.Topic] = append(producers[pub.Topic], i)
		}
	}

	// adjacency: producer -> consumer for every shared immediate topic
	edges := make([]map[int]struct{}, n)
	for i := range edges {
		edges[i] = make(map[int]struct{})
	}
	indegree := make([]int, n)
	for i, ctx := range modules {
		for _, topic := range ctx.decl.Subscribes {
			for _, producer := range producers[topic] {
				if producer == i {
					continue
				}
				if _, ok := edges[producer][i]; ok {
					continue
				}
				edges[producer][i] = struct{}{}
				indegree[i]++
			}
		}
	}

	// Kahn with registration-order tie-break for a stable, reproducible rank.
	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	rank := make([]int, n)
	for i := range rank {
		rank[i] = -1
	}
	var next int
	for len(ready) > 0 {
		sort.Ints(ready)
		node := ready[0]
		ready = ready[1:]
		rank[node] = next
		next++
		for consumer := range edges[node] {
			indegree[consumer]--
			if indegree[consumer] == 0 {
				ready = append(ready, consumer)
			}
		}
	}
	if next != n {
		var cyclic []string
		for i, r := range rank {
			if r == -1 {
				cyclic = append(cyclic, modules[i].module.Name())
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("%w: modules [%s]", ErrCyclicTopology, strings.Join(cyclic, ", "))
	}

	topo := &topology{rank: rank}
	for i, ctx := range modules {
		for _, topic := range ctx.decl.Subscribes {
			topo.subscribers[topic] = append(topo.subscribers[topic], i)
		}
	}
	for t := range topo.subscribers {
		subs := topo.subscribers[t]
		sort.Slice(subs, func(a, b int) bool { return rank[subs[a]] < rank[subs[b]] })
	}
	return topo, nil
}

// validateDeclaration checks a module's topic contract at registration time.
func validateDeclaration(decl bus.Declaration) error {
	seen := make(map[schema.Topic]struct{}, len(decl.Subscribes))
	for _, topic := range decl.Subscribes {
		if !topic.IsAvailable() {
			return fmt.Errorf("%w: subscribe %d", ErrUnknownTopic, topic)
		}
		if _, ok := seen[topic]; ok {
			return fmt.Errorf("%w: subscribe %s", ErrDuplicateTopic, topic)
		}
		seen[topic] = struct{}{}
	}
	seenPub := make(map[schema.Topic]struct{}, len(decl.Publishes))
	for _, pub := range decl.Publishes {
		if !pub.Topic.IsAvailable() {
			return fmt.Errorf("%w: publish %d", ErrUnknownTopic, pub.Topic)
		}
		if _, ok := seenPub[pub.Topic]; ok {
			return fmt.Errorf("%w: publish %s", ErrDuplicateTopic, pub.Topic)
		}
		seenPub[pub.Topic] = struct{}{}
	}
	return nil
}
