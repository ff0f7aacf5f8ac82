package pytree

type jsEngineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
	logger   PredicateLogger
}

// JSEngineOption configures the JS predicate engine.
type JSEngineOption func(*jsEngineConfig)

// JSWithProgramCache applies a ProgramCache to the JS engine.
func JSWithProgramCache(cache ProgramCache) JSEngineOption {
	return func(cfg *jsEngineConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry applies a FunctionRegistry to the JS engine.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEngineOption {
	return func(cfg *jsEngineConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// JSWithLogger attaches a predicate logger to the JS engine.
func JSWithLogger(logger PredicateLogger) JSEngineOption {
	return func(cfg *jsEngineConfig) {
		cfg.logger = logger
	}
}

func applyJSEngineOptions(opts []JSEngineOption) jsEngineConfig {
	cfg := jsEngineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg jsEngineConfig) loggerOrNoop() PredicateLogger {
	if cfg.logger == nil {
		return noopPredicateLogger{}
	}
	return cfg.logger
}
