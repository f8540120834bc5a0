package deployment

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/edgecore/edgeagentd/pkg/logger"
)

// StateFileName is the best-effort metadata dump read back on startup to
// resume reporting, but never to replay failed deployments.
const StateFileName = "state.json"

type stateRecord struct {
	ID    string `json:"id"`
	Type  Type   `json:"type"`
	Stage Stage  `json:"stage"`
}

// DumpState writes the queue's current metadata to <rootPath>/deployments/state.json.
// Failures are logged, not returned: this dump is advisory, not durable
// state the agent depends on to function.
func DumpState(rootPath string, q *Queue, log logger.Logger) {
	path := filepath.Join(rootPath, "deployments", StateFileName)
	snapshot := q.Snapshot()
	records := make([]stateRecord, 0, len(snapshot))
	for _, d := range snapshot {
		records = append(records, stateRecord{ID: d.ID, Type: d.Type, Stage: d.Stage})
	}

	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		if log != nil {
			log.Warn("failed to encode deployment state", logger.Error(err))
		}
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		if log != nil {
			log.Warn("failed to create deployment state directory", logger.Error(err))
		}
		return
	}
	if err := os.WriteFile(path, payload, 0o640); err != nil {
		if log != nil {
			log.Warn("failed to write deployment state", logger.Error(err))
		}
	}
}

// LoadState reads back the metadata dump for status reporting. A missing
// or corrupt file is not an error: it just means there is nothing to
// report yet.
func LoadState(rootPath string, log logger.Logger) []Deployment {
	path := filepath.Join(rootPath, "deployments", StateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var records []stateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		if log != nil {
			log.Warn("ignoring corrupt deployment state file", logger.Error(err), logger.String("path", path))
		}
		return nil
	}
	out := make([]Deployment, 0, len(records))
	for _, r := range records {
		out = append(out, Deployment{ID: r.ID, Type: r.Type, Stage: r.Stage})
	}
	return out
}
