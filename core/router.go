package core

import (
	"fmt"
	"net/http"
	"sort"

	"prompt-relay/config"
	"prompt-relay/core/adapter"

	"github.com/sirupsen/logrus"
)

// Router 按提供商名称分发到对应的中继处理器
// 构造后只读，无需加锁
type Router struct {
	logger          *logrus.Logger
	handlers        map[string]*RelayHandler
	defaultProvider string
}

// NewRouter 根据配置为每个提供商创建中继处理器
// recorder 可以为 nil
func NewRouter(cfg *config.Config, client *http.Client, logger *logrus.Logger, recorder FailureRecorder) (*Router, error) {
	if client == nil {
		client = NewHTTPClient()
	}

	r := &Router{
		logger:          logger,
		handlers:        make(map[string]*RelayHandler),
		defaultProvider: cfg.Relay.Provider,
	}

	for _, name := range cfg.ProviderNames() {
		provider, err := adapter.New(name, cfg.AdapterOptions(name))
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
		}
		h := NewRelayHandler(provider, RelayConfig{Credential: cfg.Credential(name)}, client, logger)
		if recorder != nil {
			h.WithRecorder(recorder)
		}
		r.handlers[name] = h

		if cfg.Credential(name) == "" {
			logger.Warnf("Provider %s has no credential configured", name)
		}
	}

	if _, ok := r.handlers[r.defaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured", r.defaultProvider)
	}

	logger.Infof("Loaded %d providers (default: %s)", len(r.handlers), r.defaultProvider)
	return r, nil
}

// Route 返回指定提供商的处理器
func (r *Router) Route(name string) (*RelayHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Default 返回默认提供商的处理器
func (r *Router) Default() *RelayHandler {
	return r.handlers[r.defaultProvider]
}

// Names 返回所有已注册的提供商名称
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
