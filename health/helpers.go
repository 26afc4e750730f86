package health

import "time"

func newStatus(component, level, message string) Status {
	return Status{
		Component: component,
		Healthy:   level == LevelHealthy,
		Status:    level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy builds a healthy status.
func NewHealthy(component, message string) Status {
	return newStatus(component, LevelHealthy, message)
}

// NewUnhealthy builds an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, LevelUnhealthy, message)
}

// NewDegraded builds a degraded status.
func NewDegraded(component, message string) Status {
	return newStatus(component, LevelDegraded, message)
}

// Aggregate folds subs into one status at the worst level among them.
// An empty list is healthy.
func Aggregate(component string, subs []Status) Status {
	if len(subs) == 0 {
		return NewHealthy(component, "No services to aggregate")
	}
	var unhealthy, degraded bool
	for _, sub := range subs {
		switch {
		case sub.IsUnhealthy():
			unhealthy = true
		case sub.IsDegraded():
			degraded = true
		}
	}
	var status Status
	switch {
	case unhealthy:
		status = NewUnhealthy(component, "One or more services are unhealthy")
	case degraded:
		status = NewDegraded(component, "One or more services are degraded")
	default:
		status = NewHealthy(component, "All services are healthy")
	}
	status.SubStatuses = make([]Status, len(subs))
	copy(status.SubStatuses, subs)
	return status
}
