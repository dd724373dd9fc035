package sim

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a component of an engine.
type Kind int

const (
	KindClock Kind = iota
	KindContracts
	KindKLine
	KindAccount
	KindTrader
	KindJournal
)

var kindNames = map[Kind]string{
	KindClock:     "clock",
	KindContracts: "contracts",
	KindKLine:     "kline",
	KindAccount:   "account",
	KindTrader:    "trader",
	KindJournal:   "journal",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// dependencies lists what each component needs set up before itself.
var dependencies = map[Kind][]Kind{
	KindClock:     nil,
	KindContracts: nil,
	KindKLine:     {KindClock},
	KindAccount:   nil,
	KindTrader:    {KindClock, KindContracts, KindKLine, KindAccount},
	KindJournal:   nil,
}

// resolve orders the graph so every kind comes after its dependencies.
// Kinds without a mutual ordering keep ascending Kind order, so the result
// is the same on every call.
func resolve(deps map[Kind][]Kind) ([]Kind, error) {
	kinds := make([]Kind, 0, len(deps))
	for k := range deps {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[Kind]int, len(deps))
	order := make([]Kind, 0, len(deps))
	var path []Kind

	var visit func(k Kind) error
	visit = func(k Kind) error {
		switch state[k] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s", ErrDependencyCycle, cycle(path, k))
		}
		if _, ok := deps[k]; !ok {
			return fmt.Errorf("%s depends on unregistered component %s", path[len(path)-1], k)
		}
		state[k] = visiting
		path = append(path, k)
		for _, d := range deps[k] {
			if err := visit(d); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[k] = done
		order = append(order, k)
		return nil
	}

	for _, k := range kinds {
		if err := visit(k); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func cycle(path []Kind, back Kind) string {
	start := 0
	for i, k := range path {
		if k == back {
			start = i
			break
		}
	}
	names := make([]string, 0, len(path)-start+1)
	for _, k := range path[start:] {
		names = append(names, k.String())
	}
	names = append(names, back.String())
	return strings.Join(names, " -> ")
}
