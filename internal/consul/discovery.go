package consul

import (
	"fmt"
)

// ServiceInstance represents a discovered service instance
type ServiceInstance struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Port    int      `json:"port"`
	Tags    []string `json:"tags,omitempty"`
	Healthy bool     `json:"healthy"`
}

// Discover lists the instances of a service. With passingOnly, instances
// whose checks are not passing are left out.
func (c *Client) Discover(serviceName string, passingOnly bool) ([]*ServiceInstance, error) {
	services, _, err := c.api.Health().Service(serviceName, "", passingOnly, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover service %s: %w", serviceName, err)
	}

	instances := make([]*ServiceInstance, 0, len(services))
	for _, entry := range services {
		instance := &ServiceInstance{
			ID:      entry.Service.ID,
			Name:    entry.Service.Service,
			Address: entry.Service.Address,
			Port:    entry.Service.Port,
			Tags:    entry.Service.Tags,
			Healthy: entry.Checks.AggregatedStatus() == "passing",
		}

		// Use node address if service address is empty
		if instance.Address == "" && entry.Node != nil {
			instance.Address = entry.Node.Address
		}

		instances = append(instances, instance)
	}

	return instances, nil
}
