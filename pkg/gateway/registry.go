package gateway

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// StaticRegistry is a mutable membership set.
type StaticRegistry struct {
	mu      sync.RWMutex
	members map[common.Address]bool
}

func NewStaticRegistry(members ...common.Address) *StaticRegistry {
	r := &StaticRegistry{members: make(map[common.Address]bool)}
	for _, m := range members {
		r.members[m] = true
	}
	return r
}

func (r *StaticRegistry) Register(user common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[user] = true
}

func (r *StaticRegistry) Deregister(user common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, user)
}

func (r *StaticRegistry) IsRegistered(user common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[user]
}

// RuleCompliance denies trades above a value ceiling or involving a blocked
// party. The zero value approves everything.
type RuleCompliance struct {
	mu            sync.RWMutex
	maxTradeValue uint64 // amount x price ceiling; 0 means unlimited
	blocked       map[common.Address]bool
}

func NewRuleCompliance(maxTradeValue uint64) *RuleCompliance {
	return &RuleCompliance{
		maxTradeValue: maxTradeValue,
		blocked:       make(map[common.Address]bool),
	}
}

func (c *RuleCompliance) Block(user common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocked == nil {
		c.blocked = make(map[common.Address]bool)
	}
	c.blocked[user] = true
}

func (c *RuleCompliance) CheckTradeCompliance(buyer, seller common.Address, amount, price uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.blocked[buyer] || c.blocked[seller] {
		return false
	}
	if c.maxTradeValue > 0 && amount*price > c.maxTradeValue {
		return false
	}
	return true
}

// ThresholdOracle validates a caller's latest metric against a floor.
// Identities with no recorded metric are treated as holding DefaultMetric.
type ThresholdOracle struct {
	mu            sync.RWMutex
	threshold     uint64
	defaultMetric uint64
	metrics       map[common.Address]uint64
}

func NewThresholdOracle(threshold, defaultMetric uint64) *ThresholdOracle {
	return &ThresholdOracle{
		threshold:     threshold,
		defaultMetric: defaultMetric,
		metrics:       make(map[common.Address]uint64),
	}
}

func (o *ThresholdOracle) SetMetric(user common.Address, value uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metrics[user] = value
}

func (o *ThresholdOracle) ValidateMetric(user common.Address) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	metric, ok := o.metrics[user]
	if !ok {
		metric = o.defaultMetric
	}
	return metric >= o.threshold
}
