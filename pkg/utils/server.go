package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const nodeIDFile = ".server_id"

// NodeIDSource dice de dónde salió el id del nodo; se loguea al arrancar.
type NodeIDSource string

const (
	NodeIDFromOverride NodeIDSource = "override"
	NodeIDFromFile     NodeIDSource = "file"
	NodeIDFromHostname NodeIDSource = "hostname"
	NodeIDGenerated    NodeIDSource = "generated"
)

var unsafeNodeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// NodeID resolves the identity a node stamps on the pub/sub events it
// publishes. Precedence: override, the id saved under storagePath, the
// hostname, then a random id that is saved for the next start.
// The error only reports a failed save; the id is usable anyway.
func NodeID(override, storagePath string) (string, NodeIDSource, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, NodeIDFromOverride, nil
	}

	path := filepath.Join(storagePath, nodeIDFile)
	if raw, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, NodeIDFromFile, nil
		}
	}

	if host, err := os.Hostname(); err == nil && host != "localhost" {
		if clean := unsafeNodeChars.ReplaceAllString(host, ""); clean != "" {
			return "whatspy-" + clean, NodeIDFromHostname, nil
		}
	}

	id := "whatspy-" + uuid.NewString()[:8]
	if err := CreateFolder(storagePath); err != nil {
		return id, NodeIDGenerated, err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return id, NodeIDGenerated, fmt.Errorf("failed to persist node id: %w", err)
	}
	return id, NodeIDGenerated, nil
}
