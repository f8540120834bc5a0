package config

import "time"

// Config holds all agent configuration, loaded from a single YAML file
// at startup.
type Config struct {
	Runtime  RuntimeConfig  `yaml:"runtime" json:"runtime"`
	Identity IdentityConfig `yaml:"identity" json:"identity"`
	MQTT     MQTTConfig     `yaml:"mqtt" json:"mqtt"`
	IPC      IPCConfig      `yaml:"ipc" json:"ipc"`
	CoreBus  CoreBusConfig  `yaml:"coreBus" json:"coreBus"`
	TES      TESConfig      `yaml:"tes" json:"tes"`
	Recipe   RecipeConfig   `yaml:"recipe" json:"recipe"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Debug    DebugConfig    `yaml:"debug" json:"debug"`
}

// RuntimeConfig holds the on-disk layout the agent operates from.
type RuntimeConfig struct {
	RootPath      string `yaml:"rootPath" json:"rootPath"`
	SocketDir     string `yaml:"socketDir" json:"socketDir"`
	WorkDir       string `yaml:"workDir" json:"workDir"`
	ArtifactsDir  string `yaml:"artifactsDir" json:"artifactsDir"`
	DeploymentDir string `yaml:"deploymentDir" json:"deploymentDir"`
	NucleusVersion string `yaml:"nucleusVersion" json:"nucleusVersion"`
}

// IdentityConfig holds the device's cloud identity and TLS material.
type IdentityConfig struct {
	ThingName         string `yaml:"thingName" json:"thingName"`
	Region            string `yaml:"region" json:"region"`
	RootCAPath        string `yaml:"rootCaPath" json:"rootCaPath"`
	CertificateFile   string `yaml:"certificateFilePath" json:"certificateFilePath"`
	PrivateKeyFile    string `yaml:"privateKeyFilePath" json:"privateKeyFilePath"`
	CredEndpoint      string `yaml:"credEndpoint" json:"credEndpoint"`
	DataEndpoint      string `yaml:"dataEndpoint" json:"dataEndpoint"`
	RoleAlias         string `yaml:"roleAlias" json:"roleAlias"`
	NetworkProxyURL   string `yaml:"networkProxyUrl" json:"networkProxyUrl"`
	RunWithPosixUser  string `yaml:"runWithPosixUser" json:"runWithPosixUser"`
	RunWithPosixGroup string `yaml:"runWithPosixGroup" json:"runWithPosixGroup"`
}

// MQTTConfig configures the cloud MQTT session.
type MQTTConfig struct {
	ClientID          string        `yaml:"clientId" json:"clientId"`
	KeepAlive         time.Duration `yaml:"keepAlive" json:"keepAlive"`
	ConnectTimeout    time.Duration `yaml:"connectTimeout" json:"connectTimeout"`
	MaxReconnectDelay time.Duration `yaml:"maxReconnectDelay" json:"maxReconnectDelay"`
	SpoolDir          string        `yaml:"spoolDir" json:"spoolDir"`
}

// IPCConfig configures the component IPC broker, reachable over the
// well-known socket under RuntimeConfig.SocketDir.
type IPCConfig struct {
	SocketName    string        `yaml:"socketName" json:"socketName"`
	MaxMessageLen int           `yaml:"maxMessageLen" json:"maxMessageLen"`
	AuthTimeout   time.Duration `yaml:"authTimeout" json:"authTimeout"`
}

// CoreBusConfig configures the intra-process service bus that every
// nucleus subsystem registers its handlers on.
type CoreBusConfig struct {
	IOTimeout     time.Duration `yaml:"ioTimeout" json:"ioTimeout"`
	HandlePoolCap int           `yaml:"handlePoolCap" json:"handlePoolCap"`
}

// TESConfig configures the local token exchange service that hands
// short-lived AWS credentials to components over loopback HTTP.
type TESConfig struct {
	Port          int           `yaml:"port" json:"port"`
	BindHost      string        `yaml:"bindHost" json:"bindHost"`
	CredentialTTL time.Duration `yaml:"credentialTtl" json:"credentialTtl"`
	RefreshBefore time.Duration `yaml:"refreshBefore" json:"refreshBefore"`
}

// RecipeConfig configures where component recipes and deployment
// manifests are read from and resolved into.
type RecipeConfig struct {
	RecipeDir     string `yaml:"recipeDir" json:"recipeDir"`
	ComponentRoot string `yaml:"componentRoot" json:"componentRoot"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	FilePath   string `yaml:"filePath" json:"filePath"`
	MaxSize    int    `yaml:"maxSize" json:"maxSize"`
	MaxBackups int    `yaml:"maxBackups" json:"maxBackups"`
	MaxAge     int    `yaml:"maxAge" json:"maxAge"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DebugConfig configures the loopback-only debug HTTP surface
// (/healthz, /metrics, /debug/components).
type DebugConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}
