package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Common errors.
var (
	ErrEmptyValue         = errors.New("value cannot be empty")
	ErrFileNotAccessible  = errors.New("file is not accessible")
	ErrDirectoryNotExists = errors.New("directory does not exist")
	ErrInvalidPort        = errors.New("invalid port number")
	ErrInvalidTimeout     = errors.New("invalid timeout value")
	ErrInvalidFormat      = errors.New("invalid format")
)

// Validate checks if the configuration is valid.
func Validate(cfg *Config) error {
	if err := ValidateRuntime(cfg.Runtime); err != nil {
		return fmt.Errorf("runtime config: %w", err)
	}

	if err := ValidateIdentity(cfg.Identity); err != nil {
		return fmt.Errorf("identity config: %w", err)
	}

	if err := ValidateIPC(cfg.IPC); err != nil {
		return fmt.Errorf("ipc config: %w", err)
	}

	if err := ValidateCoreBus(cfg.CoreBus); err != nil {
		return fmt.Errorf("core bus config: %w", err)
	}

	if err := ValidateTES(cfg.TES); err != nil {
		return fmt.Errorf("tes config: %w", err)
	}

	if err := ValidateLogging(cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ValidateRuntime validates the on-disk layout configuration.
func ValidateRuntime(runtime RuntimeConfig) error {
	if runtime.RootPath == "" {
		return fmt.Errorf("root path: %w", ErrEmptyValue)
	}

	if err := checkDirWritable(runtime.RootPath); err != nil {
		return fmt.Errorf("root path: %w", err)
	}

	if runtime.SocketDir == "" {
		return fmt.Errorf("socket dir: %w", ErrEmptyValue)
	}

	if err := checkDirWritable(runtime.SocketDir); err != nil {
		return fmt.Errorf("socket dir: %w", err)
	}

	return nil
}

// ValidateIdentity validates the device's cloud identity configuration.
func ValidateIdentity(identity IdentityConfig) error {
	if identity.Region == "" {
		return fmt.Errorf("region: %w", ErrEmptyValue)
	}

	if identity.CertificateFile != "" {
		if err := checkFileReadable(identity.CertificateFile); err != nil {
			return fmt.Errorf("certificate file: %w", err)
		}
	}

	if identity.PrivateKeyFile != "" {
		if err := checkFileReadable(identity.PrivateKeyFile); err != nil {
			return fmt.Errorf("private key file: %w", err)
		}
	}

	return nil
}

// ValidateIPC validates the component IPC broker configuration.
func ValidateIPC(ipc IPCConfig) error {
	if ipc.SocketName == "" {
		return fmt.Errorf("socket name: %w", ErrEmptyValue)
	}

	if ipc.MaxMessageLen <= 0 {
		return fmt.Errorf("max message length must be positive")
	}

	if ipc.AuthTimeout <= 0 {
		return fmt.Errorf("auth timeout: %w", ErrInvalidTimeout)
	}

	return nil
}

// ValidateCoreBus validates the intra-process bus configuration.
func ValidateCoreBus(bus CoreBusConfig) error {
	if bus.IOTimeout <= 0 {
		return fmt.Errorf("io timeout: %w", ErrInvalidTimeout)
	}

	if bus.HandlePoolCap <= 0 {
		return fmt.Errorf("handle pool capacity must be positive")
	}

	return nil
}

// ValidateTES validates the token exchange service configuration.
func ValidateTES(tes TESConfig) error {
	if tes.Port < 1 || tes.Port > 65535 {
		return fmt.Errorf("port %d: %w", tes.Port, ErrInvalidPort)
	}

	if tes.CredentialTTL <= 0 {
		return fmt.Errorf("credential ttl: %w", ErrInvalidTimeout)
	}

	if tes.RefreshBefore < 0 || tes.RefreshBefore >= tes.CredentialTTL {
		return fmt.Errorf("refresh before must be smaller than credential ttl")
	}

	return nil
}

// ValidateLogging validates logging configuration.
func ValidateLogging(logging LoggingConfig) error {
	validLevels := map[string]bool{
		"debug":  true,
		"info":   true,
		"warn":   true,
		"error":  true,
		"dpanic": true,
		"panic":  true,
		"fatal":  true,
	}

	if !validLevels[strings.ToLower(logging.Level)] {
		return fmt.Errorf("log level %s: %w", logging.Level, ErrInvalidFormat)
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[strings.ToLower(logging.Format)] {
		return fmt.Errorf("log format %s: %w", logging.Format, ErrInvalidFormat)
	}

	if logging.FilePath != "" && logging.FilePath != "stdout" && logging.FilePath != "stderr" {
		dir := filepath.Dir(logging.FilePath)
		if err := checkDirWritable(dir); err != nil {
			return fmt.Errorf("log directory: %w", err)
		}
	}

	if logging.MaxSize < 0 {
		return fmt.Errorf("max size must be non-negative")
	}

	if logging.MaxBackups < 0 {
		return fmt.Errorf("max backups must be non-negative")
	}

	if logging.MaxAge < 0 {
		return fmt.Errorf("max age must be non-negative")
	}

	return nil
}

// Helper functions.

// checkFileReadable checks if a file exists and is readable.
func checkFileReadable(path string) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, ErrFileNotAccessible)
	}
	if err != nil {
		return fmt.Errorf("accessing %s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	return nil
}

// checkDirWritable checks if a directory exists and is writable.
func checkDirWritable(path string) error {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, ErrDirectoryNotExists)
	}
	if err != nil {
		return fmt.Errorf("accessing %s: %w", path, err)
	}

	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	tempFile := filepath.Join(path, ".edgeagentd-write-test")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", path, err)
	}

	f.Close()
	os.Remove(tempFile)

	return nil
}
