package instance

import (
	"fmt"
	"os"
	"strings"
)

const envWorkerID = "TRAMAR_WORKER_ID"

// GetID identifies this process in lock values and logs. It prefers the
// configured worker id, then the hostname plus pid.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(envWorkerID)); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
