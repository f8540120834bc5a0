package config

import (
	"testing"
	"time"
)

func TestValidateRuntime(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name    string
		runtime RuntimeConfig
		wantErr bool
	}{
		{
			name: "Valid config",
			runtime: RuntimeConfig{
				RootPath:  tempDir,
				SocketDir: tempDir,
			},
			wantErr: false,
		},
		{
			name: "Empty root path",
			runtime: RuntimeConfig{
				RootPath:  "",
				SocketDir: tempDir,
			},
			wantErr: true,
		},
		{
			name: "Non-existent root path",
			runtime: RuntimeConfig{
				RootPath:  "/path/that/does/not/exist",
				SocketDir: tempDir,
			},
			wantErr: true,
		},
		{
			name: "Empty socket dir",
			runtime: RuntimeConfig{
				RootPath:  tempDir,
				SocketDir: "",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuntime(tt.runtime)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRuntime() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateIdentity(t *testing.T) {
	tests := []struct {
		name     string
		identity IdentityConfig
		wantErr  bool
	}{
		{
			name: "Valid config",
			identity: IdentityConfig{
				ThingName: "my-thing",
				Region:    "us-east-1",
			},
			wantErr: false,
		},
		{
			name: "Empty region",
			identity: IdentityConfig{
				ThingName: "my-thing",
				Region:    "",
			},
			wantErr: true,
		},
		{
			name: "Non-existent certificate file",
			identity: IdentityConfig{
				Region:          "us-east-1",
				CertificateFile: "/path/that/does/not/exist.pem",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentity(tt.identity)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentity() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateIPC(t *testing.T) {
	tests := []struct {
		name    string
		ipc     IPCConfig
		wantErr bool
	}{
		{
			name: "Valid config",
			ipc: IPCConfig{
				SocketName:    "gg_ipc.socket",
				MaxMessageLen: 1 << 20,
				AuthTimeout:   5 * time.Second,
			},
			wantErr: false,
		},
		{
			name: "Empty socket name",
			ipc: IPCConfig{
				SocketName:    "",
				MaxMessageLen: 1 << 20,
				AuthTimeout:   5 * time.Second,
			},
			wantErr: true,
		},
		{
			name: "Invalid max message length",
			ipc: IPCConfig{
				SocketName:    "gg_ipc.socket",
				MaxMessageLen: 0,
				AuthTimeout:   5 * time.Second,
			},
			wantErr: true,
		},
		{
			name: "Invalid auth timeout",
			ipc: IPCConfig{
				SocketName:    "gg_ipc.socket",
				MaxMessageLen: 1 << 20,
				AuthTimeout:   0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIPC(tt.ipc)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIPC() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCoreBus(t *testing.T) {
	tests := []struct {
		name    string
		bus     CoreBusConfig
		wantErr bool
	}{
		{
			name: "Valid config",
			bus: CoreBusConfig{
				IOTimeout:     5 * time.Second,
				HandlePoolCap: 256,
			},
			wantErr: false,
		},
		{
			name: "Invalid io timeout",
			bus: CoreBusConfig{
				IOTimeout:     0,
				HandlePoolCap: 256,
			},
			wantErr: true,
		},
		{
			name: "Invalid handle pool capacity",
			bus: CoreBusConfig{
				IOTimeout:     5 * time.Second,
				HandlePoolCap: 0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoreBus(tt.bus)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCoreBus() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTES(t *testing.T) {
	tests := []struct {
		name    string
		tes     TESConfig
		wantErr bool
	}{
		{
			name: "Valid config",
			tes: TESConfig{
				Port:          8999,
				CredentialTTL: time.Hour,
				RefreshBefore: 5 * time.Minute,
			},
			wantErr: false,
		},
		{
			name: "Invalid port (too low)",
			tes: TESConfig{
				Port:          0,
				CredentialTTL: time.Hour,
			},
			wantErr: true,
		},
		{
			name: "Invalid port (too high)",
			tes: TESConfig{
				Port:          70000,
				CredentialTTL: time.Hour,
			},
			wantErr: true,
		},
		{
			name: "Invalid credential ttl",
			tes: TESConfig{
				Port:          8999,
				CredentialTTL: 0,
			},
			wantErr: true,
		},
		{
			name: "Refresh before exceeds ttl",
			tes: TESConfig{
				Port:          8999,
				CredentialTTL: time.Minute,
				RefreshBefore: time.Hour,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTES(tt.tes)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTES() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateLogging(t *testing.T) {
	tests := []struct {
		name    string
		logging LoggingConfig
		wantErr bool
	}{
		{
			name: "Valid config",
			logging: LoggingConfig{
				Level:      "info",
				Format:     "json",
				FilePath:   "",
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     30,
				Compress:   true,
			},
			wantErr: false,
		},
		{
			name: "Invalid level",
			logging: LoggingConfig{
				Level:  "invalid",
				Format: "json",
			},
			wantErr: true,
		},
		{
			name: "Invalid format",
			logging: LoggingConfig{
				Level:  "info",
				Format: "invalid",
			},
			wantErr: true,
		},
		{
			name: "Negative max size",
			logging: LoggingConfig{
				Level:   "info",
				Format:  "json",
				MaxSize: -1,
			},
			wantErr: true,
		},
		{
			name: "Negative max backups",
			logging: LoggingConfig{
				Level:      "info",
				Format:     "json",
				MaxSize:    10,
				MaxBackups: -1,
			},
			wantErr: true,
		},
		{
			name: "Negative max age",
			logging: LoggingConfig{
				Level:      "info",
				Format:     "json",
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogging(tt.logging)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLogging() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tempDir := t.TempDir()

	validConfig := Config{
		Runtime: RuntimeConfig{
			RootPath:  tempDir,
			SocketDir: tempDir,
		},
		Identity: IdentityConfig{
			ThingName: "my-thing",
			Region:    "us-east-1",
		},
		IPC: IPCConfig{
			SocketName:    "gg_ipc.socket",
			MaxMessageLen: 1 << 20,
			AuthTimeout:   5 * time.Second,
		},
		CoreBus: CoreBusConfig{
			IOTimeout:     5 * time.Second,
			HandlePoolCap: 256,
		},
		TES: TESConfig{
			Port:          8999,
			CredentialTTL: time.Hour,
			RefreshBefore: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			FilePath:   "",
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
	}

	if err := Validate(&validConfig); err != nil {
		t.Errorf("Validate() error = %v, wantErr %v", err, false)
	}

	invalidRuntime := validConfig
	invalidRuntime.Runtime.RootPath = ""
	if err := Validate(&invalidRuntime); err == nil {
		t.Errorf("Validate() with invalid runtime config - expected error, got nil")
	}

	invalidIdentity := validConfig
	invalidIdentity.Identity.Region = ""
	if err := Validate(&invalidIdentity); err == nil {
		t.Errorf("Validate() with invalid identity config - expected error, got nil")
	}

	invalidIPC := validConfig
	invalidIPC.IPC.SocketName = ""
	if err := Validate(&invalidIPC); err == nil {
		t.Errorf("Validate() with invalid ipc config - expected error, got nil")
	}

	invalidTES := validConfig
	invalidTES.TES.Port = 0
	if err := Validate(&invalidTES); err == nil {
		t.Errorf("Validate() with invalid tes config - expected error, got nil")
	}

	invalidLogging := validConfig
	invalidLogging.Logging.Level = "INVALID"
	if err := Validate(&invalidLogging); err == nil {
		t.Errorf("Validate() with invalid logging config - expected error, got nil")
	}
}
