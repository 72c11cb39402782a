package workflow

// ComponentHealth summarizes the readiness of a scheduler dependency.
type ComponentHealth struct {
	Name   string
	Ready  bool
	Detail string
}

// HealthyComponent constructs a ready ComponentHealth record.
func HealthyComponent(name string) ComponentHealth {
	return ComponentHealth{Name: name, Ready: true}
}

// UnhealthyComponent constructs an unhealthy ComponentHealth record with context detail.
func UnhealthyComponent(name, detail string) ComponentHealth {
	return ComponentHealth{Name: name, Ready: false, Detail: detail}
}
