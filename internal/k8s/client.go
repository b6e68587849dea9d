package k8s

import (
	"context"
	"fmt"

	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client talks to the cluster that hosts the installed apps.
type Client struct {
	dynamic   dynamic.Interface
	discovery discovery.ServerVersionInterface
}

// ConnectivityStatus is the outcome of a cluster reachability check.
type ConnectivityStatus struct {
	Connected bool
	Version   string
}

// ClientOption configures NewClient.
type ClientOption func(*clientOptions)

type clientOptions struct {
	kubeconfigPath string
	userAgent      string
}

// WithKubeconfig selects a kubeconfig file instead of in-cluster credentials.
func WithKubeconfig(path string) ClientOption {
	return func(o *clientOptions) {
		o.kubeconfigPath = path
	}
}

// WithUserAgent sets the User-Agent sent on every API request.
func WithUserAgent(ua string) ClientOption {
	return func(o *clientOptions) {
		o.userAgent = ua
	}
}

// NewClient connects with the kubeconfig when one is given, else with the
// pod's service account.
func NewClient(opts ...ClientOption) (*Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := restConfig(o.kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes config: %w", err)
	}
	if o.userAgent != "" {
		cfg.UserAgent = o.userAgent
	}

	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating dynamic client: %w", err)
	}
	disc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating discovery client: %w", err)
	}

	return &Client{dynamic: dyn, discovery: disc}, nil
}

// CheckConnectivity reports whether the API server answers a version
// request. The discovery call does not take a context.
func (c *Client) CheckConnectivity(_ context.Context) ConnectivityStatus {
	info, err := c.discovery.ServerVersion()
	if err != nil {
		return ConnectivityStatus{}
	}
	return ConnectivityStatus{Connected: true, Version: info.GitVersion}
}

func restConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig from %s: %w", kubeconfigPath, err)
		}
		return cfg, nil
	}

	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("no kubeconfig path provided and not running in-cluster: %w", err)
	}
	return cfg, nil
}
