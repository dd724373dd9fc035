package market

import "fmt"

// Registry holds contracts by code, in registration order.
type Registry struct {
	contracts []*Contract
	byCode    map[string]*Contract
}

func NewRegistry(contracts ...*Contract) (*Registry, error) {
	r := &Registry{byCode: make(map[string]*Contract)}
	for _, c := range contracts {
		if err := r.Add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Add(c *Contract) error {
	if _, ok := r.byCode[c.Code()]; ok {
		return fmt.Errorf("%w: %s", ErrContractExists, c.Code())
	}
	r.contracts = append(r.contracts, c)
	r.byCode[c.Code()] = c
	return nil
}

func (r *Registry) Get(code string) (*Contract, error) {
	c, ok := r.byCode[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, code)
	}
	return c, nil
}

func (r *Registry) Contracts() []*Contract {
	out := make([]*Contract, len(r.contracts))
	copy(out, r.contracts)
	return out
}

func (r *Registry) State() []ContractState {
	out := make([]ContractState, 0, len(r.contracts))
	for _, c := range r.contracts {
		out = append(out, c.State())
	}
	return out
}

func RegistryFromState(states []ContractState) (*Registry, error) {
	r := &Registry{byCode: make(map[string]*Contract)}
	for _, s := range states {
		c, err := ContractFromState(s)
		if err != nil {
			return nil, err
		}
		if err := r.Add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}
