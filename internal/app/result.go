package app

import "strings"

// Result is the structured outcome every lifecycle operation returns.
// RebootRequired is a first-class outcome: not a success, but distinct
// from a generic failure, and callers must branch on it.
type Result struct {
	Success        bool   `json:"success"`
	RebootRequired bool   `json:"reboot_required,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	Output         string `json:"output,omitempty"`
}

// DownloadResult extends Result with the fetched artifact's identity.
type DownloadResult struct {
	Result
	Path    string `json:"path,omitempty"`
	Hash    string `json:"hash,omitempty"`
	Version string `json:"version,omitempty"`
}

func success(msg string) Result {
	return Result{Success: true, Message: msg}
}

func failure(reason string) Result {
	return Result{Error: reason}
}

func containsMarker(stdout string) bool {
	return strings.Contains(stdout, rebootMarker)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
