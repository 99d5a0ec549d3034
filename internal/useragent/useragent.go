// Package useragent parses the user-agent strings sent by editor plugins
// into the fields ingestion stamps onto every heartbeat.
//
// Editor plugins send UAs shaped like:
//
//	wakatime/v1.73.0 (linux-5.15.0-x86_64) go1.21.0 vscode/1.85.1 vscode-wakatime/24.0.2
//
// i.e. a core-client segment, a parenthesized platform, and trailing
// editor/version and plugin/version segments. Browser UA libraries do not
// understand this format, so parsing is done here.
package useragent

import (
	"regexp"
	"strings"
)

// Info is the parsed result. Fields default to "unknown" rather than empty
// so aggregation buckets stay well-defined even for odd clients.
type Info struct {
	Editor   string
	Plugin   string
	Platform string
}

const unknown = "unknown"

var (
	platformRe = regexp.MustCompile(`\(([^)\s-]+)[^)]*\)`)
	segmentRe  = regexp.MustCompile(`^([A-Za-z][\w.+-]*)/(\S+)$`)
)

// coreClients are segment names that identify the tracking client itself,
// not the editor or its plugin.
var coreClients = map[string]bool{
	"wakatime": true,
	"pulse":    true,
}

// Parse extracts editor, plugin and platform from a user-agent string.
// It never fails: unrecognized input yields Info{unknown, unknown, unknown}.
func Parse(ua string) Info {
	info := Info{Editor: unknown, Plugin: unknown, Platform: unknown}
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return info
	}

	if m := platformRe.FindStringSubmatch(ua); m != nil {
		info.Platform = strings.ToLower(m[1])
	}

	// Walk name/version segments left to right. The last segment containing
	// the core client name is the plugin ("vscode-wakatime/24.0.2"); the
	// last segment before it that is not a language runtime is the editor.
	for _, field := range strings.Fields(ua) {
		m := segmentRe.FindStringSubmatch(field)
		if m == nil {
			continue
		}
		name := strings.ToLower(m[1])

		switch {
		case coreClients[name]:
			// the tracking client itself, e.g. "wakatime/v1.73.0"
		case isPlugin(name):
			info.Plugin = m[1] + "/" + m[2]
		case isRuntime(name):
			// language runtime version, e.g. "go1.21.0" never matches here,
			// but "python/3.11" style does
		default:
			info.Editor = name
		}
	}

	return info
}

// isPlugin reports whether a segment name looks like an editor plugin, e.g.
// "vscode-wakatime" or "emacs-pulse".
func isPlugin(name string) bool {
	for client := range coreClients {
		if strings.HasSuffix(name, "-"+client) || strings.HasPrefix(name, client+"-") {
			return true
		}
	}
	return false
}

var runtimes = map[string]bool{
	"go": true, "python": true, "node": true, "ruby": true, "java": true,
}

func isRuntime(name string) bool {
	return runtimes[name]
}
