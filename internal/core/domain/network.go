package domain

// ServiceStatus is the availability of a network service.
type ServiceStatus string

const (
	ServiceOnline  ServiceStatus = "online"
	ServiceOffline ServiceStatus = "offline"
)

// NetworkStatus reports the health of the network's key services.
type NetworkStatus struct {
	Sequencer       ServiceStatus `json:"sequencer"`
	RPCEndpoint     ServiceStatus `json:"rpc_endpoint"`
	BundlerEndpoint ServiceStatus `json:"bundler_endpoint"`
}

// DefaultNetworkStatus is the state before any probe has run.
func DefaultNetworkStatus() NetworkStatus {
	return NetworkStatus{
		Sequencer:       ServiceOffline,
		RPCEndpoint:     ServiceOffline,
		BundlerEndpoint: ServiceOffline,
	}
}
