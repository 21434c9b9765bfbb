package cnst

const (
	// AppName is the name of the application
	AppName = "parley"
	// CommandName is the name of the server binary
	CommandName = "chatserver"
)

const (
	// ChatServerYaml is the default server configuration file name
	ChatServerYaml = "chatserver.yaml"
)

const (
	// XLang is the header and context key carrying the client's language
	XLang = "X-Lang"
	// LangEN is the English language code
	LangEN = "en"
	// LangDefault is the fallback language
	LangDefault = LangEN
)

const (
	// RedisClusterTypeSentinel is the sentinel Redis deployment mode
	RedisClusterTypeSentinel = "sentinel"
	// RedisClusterTypeCluster is the cluster Redis deployment mode
	RedisClusterTypeCluster = "cluster"
	// RedisClusterTypeSingle is the single-node Redis deployment mode
	RedisClusterTypeSingle = "single"
)
